// Package resource provides the per-resource endpoints of the OpenML API.
//
// Every (APIVersion, ResourceType) pair maps to one entry of a static
// capability table holding the URL segment and the supported operations.
// New builds an Endpoint from that table; calling an operation the table
// does not list fails with a *NotSupportedError, which is the signal the
// fallback proxy reacts to.
//
// Endpoints hold no state besides their transport and can be shared freely.
package resource

import (
	"fmt"
	"strings"
)

// APIVersion identifies a protocol version of the API.
type APIVersion string

const (
	V1 APIVersion = "v1"
	V2 APIVersion = "v2"
)

// APIVersions lists all known versions.
func APIVersions() []APIVersion {
	return []APIVersion{V1, V2}
}

// ParseAPIVersion parses "v1" or "v2", ignoring case.
func ParseAPIVersion(s string) (APIVersion, error) {
	v := APIVersion(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case V1, V2:
		return v, nil
	}
	return "", fmt.Errorf("unknown api version %q", s)
}

// ResourceType identifies a kind of resource.
type ResourceType string

const (
	Dataset             ResourceType = "dataset"
	Task                ResourceType = "task"
	Flow                ResourceType = "flow"
	Run                 ResourceType = "run"
	Setup               ResourceType = "setup"
	Study               ResourceType = "study"
	Evaluation          ResourceType = "evaluation"
	EvaluationMeasure   ResourceType = "evaluation_measure"
	EstimationProcedure ResourceType = "estimation_procedure"
	User                ResourceType = "user"
	TaskType            ResourceType = "task_type"
)

// ResourceTypes lists all resource types.
func ResourceTypes() []ResourceType {
	return []ResourceType{
		Dataset, Task, Flow, Run, Setup, Study, Evaluation,
		EvaluationMeasure, EstimationProcedure, User, TaskType,
	}
}

// ParseResourceType parses a resource type name. Dashes are accepted in
// place of underscores.
func ParseResourceType(s string) (ResourceType, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for _, rt := range ResourceTypes() {
		if string(rt) == name {
			return rt, nil
		}
	}
	return "", fmt.Errorf("unknown resource type %q", s)
}

// Operation names an endpoint operation.
type Operation string

const (
	OpGet      Operation = "get"
	OpList     Operation = "list"
	OpDelete   Operation = "delete"
	OpPublish  Operation = "publish"
	OpTag      Operation = "tag"
	OpUntag    Operation = "untag"
	OpDownload Operation = "download"
)
