// Package pipeline provides multi-stage streaming data processing.
//
// A pipeline is a chain of stages connected by channels. Each stage
// runs one or more workers that receive items from the previous stage,
// apply the stage transform, and send the result downstream. Closing
// the source channel drains through the chain: each stage closes its
// output once its input is exhausted, so the final output channel
// closes exactly when every item has passed through every stage.
//
// A transform error does not stop the pipeline. The failing item is
// forwarded downstream with its error attached and skips the remaining
// transforms, so callers see one terminal Item per source item.
//
// Stages with Concurrency 1 preserve input order end to end. A stage
// with Concurrency greater than 1 may reorder items.
package pipeline
