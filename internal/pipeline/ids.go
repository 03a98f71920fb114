// Package pipeline runs the asynchronous artwork flows: generation,
// print normalization and fulfillment product creation.
package pipeline

import "github.com/google/uuid"

var stepNamespace = uuid.MustParse("6f1c2a4e-8b0d-4e57-9a3f-2d7c5b1e9f40")

// StepID derives the identifier a step writes under. The same job and step
// always yield the same id, so a replayed step rewrites the same rows.
func StepID(jobID, step string) string {
	return uuid.NewSHA1(stepNamespace, []byte(jobID+"/"+step)).String()
}
