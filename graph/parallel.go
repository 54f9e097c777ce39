package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/weavegraph/weave/graph/pipeline"
)

// BranchResult is the outcome of one parallel branch: its index in
// declaration order, its output, and the forked context it ran in.
type BranchResult struct {
	Index   int
	Output  any
	Context *RunContext
}

// MergeFunc collapses the results of all branches into one. It must return
// one of the supplied results unchanged in its Context field: the winning
// fork's state becomes the parent context's state, every other fork is
// discarded whole. Partial merges do not exist; a merge that wants data from
// several branches must copy it into the winning fork's storage before
// returning.
type MergeFunc func(results []BranchResult) (BranchResult, error)

// SelectBranch is a MergeFunc that always picks the branch at the given
// declaration index.
func SelectBranch(index int) MergeFunc {
	return func(results []BranchResult) (BranchResult, error) {
		if index < 0 || index >= len(results) {
			return BranchResult{}, fmt.Errorf("branch index %d out of range (%d branches)", index, len(results))
		}
		return results[index], nil
	}
}

type parallelSpec struct {
	branches       []*Node
	merge          MergeFunc
	maxConcurrency int
}

// runParallel forks the context once per branch, runs all branches
// concurrently, joins them, and applies the merge function.
//
// Any branch failure cancels the siblings and aborts the whole composite, so
// a cancelled branch can never win a merge. A branch that saved a checkpoint
// fails the merge with ErrCheckpointInParallel. The parent context is not
// touched until the merge has picked a winner.
func (e *Engine) runParallel(ctx context.Context, node *Node, rc *RunContext, input any) (any, error) {
	spec := node.parallel
	if len(spec.branches) == 0 {
		return nil, fmt.Errorf("parallel node %q has no branches", node.name)
	}
	if spec.merge == nil {
		return nil, fmt.Errorf("parallel node %q has no merge function", node.name)
	}

	forks := make([]*RunContext, len(spec.branches))
	results := make([]BranchResult, len(spec.branches))

	g, gctx := errgroup.WithContext(ctx)
	if spec.maxConcurrency > 0 {
		g.SetLimit(spec.maxConcurrency)
	}

	for i, branch := range spec.branches {
		i, branch := i, branch
		fork := rc.Fork()
		forks[i] = fork

		g.Go(func() error {
			fork.setCurrentNode(branch.name)
			encodedIn := encodePayload(input)
			if err := fork.notify(gctx, pipeline.NewNodeExecutionStarting(rc.runID, branch.name, encodedIn)); err != nil {
				return err
			}

			output, err := e.executeBody(gctx, branch, fork, input)
			if err != nil {
				if nerr := fork.notify(gctx, pipeline.NewNodeExecutionFailed(rc.runID, branch.name, encodedIn, err.Error())); nerr != nil {
					return nerr
				}
				return &NodeError{NodeName: branch.name, Err: err}
			}

			if err := fork.notify(gctx, pipeline.NewNodeExecutionCompleted(rc.runID, branch.name, encodedIn, encodePayload(output))); err != nil {
				return err
			}

			results[i] = BranchResult{Index: i, Output: output, Context: fork}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, fork := range forks {
		if fork.Checkpointed() {
			return nil, fmt.Errorf("branch %q: %w", spec.branches[i].name, ErrCheckpointInParallel)
		}
	}

	winner, err := spec.merge(results)
	if err != nil {
		return nil, &MergeError{NodeName: node.name, Err: err}
	}
	if !isOneOf(winner.Context, forks) {
		return nil, &MergeError{NodeName: node.name, Reason: "merge returned a context that is not one of the branch forks"}
	}

	rc.adopt(winner.Context)
	return winner.Output, nil
}

func isOneOf(rc *RunContext, forks []*RunContext) bool {
	for _, fork := range forks {
		if rc == fork {
			return true
		}
	}
	return false
}
