package varstore

import "testing"

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Enabled:   true,
		Endpoint:  "localhost:9000",
		AccessKey: "relay",
		SecretKey: "relay-secret",
		Bucket:    "relay-pipeline-vars",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	withScheme := valid
	withScheme.Endpoint = "http://localhost:9000"
	if err := withScheme.Validate(); err == nil {
		t.Fatalf("expected error for endpoint with scheme")
	}

	noCreds := valid
	noCreds.AccessKey = ""
	if err := noCreds.Validate(); err == nil {
		t.Fatalf("expected error for missing access key")
	}

	noBucket := valid
	noBucket.Bucket = " "
	if err := noBucket.Validate(); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}

func TestConfigFromEnv_Disabled(t *testing.T) {
	t.Setenv("VARSTORE_ENABLED", "false")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Enabled {
		t.Fatalf("expected disabled")
	}
}

func TestConfigFromEnv_EnabledRequiresCredentials(t *testing.T) {
	t.Setenv("VARSTORE_ENABLED", "true")
	t.Setenv("VARSTORE_ACCESS_KEY", "")
	t.Setenv("VARSTORE_SECRET_KEY", "")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}
