package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a resolved digest is applied to a target.
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModePipeline Mode = "pipeline"
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDirect):
		return ModeDirect, nil
	case string(ModePipeline):
		return ModePipeline, nil
	case "":
		return "", nil
	}
	return "", fmt.Errorf("unsupported mode %q", raw)
}

// TargetSpec identifies one concrete deployment target.
type TargetSpec struct {
	Region        string `json:"region" yaml:"region"`
	AccountID     string `json:"accountId" yaml:"accountId"`
	FunctionName  string `json:"functionName" yaml:"functionName"`
	AliasName     string `json:"aliasName" yaml:"aliasName"`
	AssumeRoleArn string `json:"assumeRoleArn" yaml:"assumeRoleArn"`
}

type PipelineSpec struct {
	Name string `json:"name" yaml:"name"`
}

type CodeDeploySpec struct {
	ApplicationName      string `json:"applicationName" yaml:"applicationName"`
	DeploymentGroupName  string `json:"deploymentGroupName" yaml:"deploymentGroupName"`
	DeploymentConfigName string `json:"deploymentConfigName" yaml:"deploymentConfigName"`
}

// Binding subscribes one deployment target to an image bucket. The pair
// (BucketKey, TargetKey) uniquely identifies it. Only the three Last*
// fields are mutated by this service; the rest is provisioning input.
type Binding struct {
	BucketKey  string         `json:"bucketKey" yaml:"bucketKey"`
	TargetKey  string         `json:"targetKey" yaml:"targetKey"`
	Mode       Mode           `json:"mode" yaml:"mode"`
	Target     TargetSpec     `json:"target" yaml:"target"`
	Pipeline   PipelineSpec   `json:"pipeline" yaml:"pipeline"`
	CodeDeploy CodeDeploySpec `json:"codeDeploy" yaml:"codeDeploy"`

	LastProcessedDigest string `json:"lastProcessedDigest,omitempty" yaml:"-"`
	LastStatus          string `json:"lastStatus,omitempty" yaml:"-"`
	LastExecutionID     string `json:"lastExecutionId,omitempty" yaml:"-"`
}

// BucketKey names the subscription group for one (registry, repository, tag).
func BucketKey(registryID, repository, tag string) string {
	return fmt.Sprintf("REG#%s#REPO#%s#TAG#%s", registryID, repository, tag)
}

// TargetKeyFor derives the default target key when provisioning omits one.
func TargetKeyFor(t TargetSpec) string {
	return fmt.Sprintf("TARGET#%s#%s#%s", t.Region, t.AccountID, t.FunctionName)
}

func (b *Binding) Normalize() {
	b.BucketKey = strings.TrimSpace(b.BucketKey)
	b.TargetKey = strings.TrimSpace(b.TargetKey)
	if b.TargetKey == "" {
		b.TargetKey = TargetKeyFor(b.Target)
	}
}

func (b Binding) Validate() error {
	if strings.TrimSpace(b.BucketKey) == "" {
		return errors.New("bucket key is required")
	}
	if strings.TrimSpace(b.TargetKey) == "" {
		return errors.New("target key is required")
	}
	switch b.Mode {
	case ModeDirect, ModePipeline, "":
	default:
		return fmt.Errorf("unsupported mode %q", b.Mode)
	}
	if b.Mode == ModeDirect && strings.TrimSpace(b.Target.FunctionName) == "" {
		return errors.New("direct binding requires target.functionName")
	}
	return nil
}

// Identifier is the per-target label carried on results and log lines.
func (b Binding) Identifier() string {
	if b.Mode == ModePipeline && b.Pipeline.Name != "" {
		return b.Pipeline.Name
	}
	if b.Target.FunctionName != "" {
		return b.Target.FunctionName
	}
	return b.TargetKey
}
