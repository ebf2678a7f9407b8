package resource

import "slices"

// Capabilities describes one (version, resource type) pair.
type Capabilities struct {
	// Segment is the URL path segment of the resource ("data", "tasks").
	Segment string

	// Operations lists the supported operations.
	Operations []Operation
}

// Supports reports whether op is supported.
func (c Capabilities) Supports(op Operation) bool {
	return slices.Contains(c.Operations, op)
}

var (
	allOps = []Operation{OpGet, OpList, OpDelete, OpPublish, OpTag, OpUntag, OpDownload}
)

// registry is the static capability table.
var registry = map[APIVersion]map[ResourceType]Capabilities{
	V1: {
		Dataset:             {Segment: "data", Operations: allOps},
		Task:                {Segment: "task", Operations: allOps},
		Flow:                {Segment: "flow", Operations: allOps},
		Run:                 {Segment: "run", Operations: allOps},
		Setup:               {Segment: "setup", Operations: []Operation{OpGet, OpList, OpDelete, OpTag, OpUntag, OpDownload}},
		Study:               {Segment: "study", Operations: []Operation{OpGet, OpList, OpDelete, OpPublish, OpDownload}},
		Evaluation:          {Segment: "evaluation", Operations: []Operation{OpList, OpDownload}},
		EvaluationMeasure:   {Segment: "evaluationmeasure", Operations: []Operation{OpList, OpDownload}},
		EstimationProcedure: {Segment: "estimationprocedure", Operations: []Operation{OpGet, OpList, OpDownload}},
		User:                {Segment: "user", Operations: []Operation{OpGet, OpDelete, OpDownload}},
		TaskType:            {Segment: "tasktype", Operations: []Operation{OpGet, OpList, OpDownload}},
	},
	V2: {
		Dataset:             {Segment: "datasets", Operations: []Operation{OpGet, OpDownload}},
		Task:                {Segment: "tasks", Operations: []Operation{OpGet, OpDownload}},
		Flow:                {Segment: "flows", Operations: []Operation{OpGet, OpDownload}},
		Run:                 {Segment: "runs", Operations: []Operation{OpGet, OpDownload}},
		Setup:               {Segment: "setups", Operations: []Operation{OpDownload}},
		Study:               {Segment: "studies", Operations: []Operation{OpGet, OpDownload}},
		Evaluation:          {Segment: "evaluations", Operations: []Operation{OpDownload}},
		EvaluationMeasure:   {Segment: "evaluationmeasure", Operations: []Operation{OpList, OpDownload}},
		EstimationProcedure: {Segment: "estimationprocedure", Operations: []Operation{OpList, OpDownload}},
		User:                {Segment: "users", Operations: []Operation{OpDownload}},
		TaskType:            {Segment: "tasktype", Operations: []Operation{OpGet, OpList, OpDownload}},
	},
}

// Lookup returns the capabilities of a (version, resource type) pair.
func Lookup(version APIVersion, rt ResourceType) (Capabilities, bool) {
	caps, ok := registry[version][rt]
	return caps, ok
}

// Supports reports whether version supports op on rt.
func Supports(version APIVersion, rt ResourceType, op Operation) bool {
	caps, ok := Lookup(version, rt)
	return ok && caps.Supports(op)
}
