package progress

import (
	"context"
	"fmt"
	"time"
)

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error { return f(ctx, batch) }

func (sinkFunc) Close(context.Context) error { return nil }

// ExampleHub_Emit counts the steps a run reported.
func ExampleHub_Emit() {
	steps := 0
	hub := NewHub(Config{MaxBatchEvents: 1}, sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageStepDone {
				steps++
			}
		}
		return nil
	}))

	ts := time.Unix(0, 0)
	hub.Emit(Event{RunID: "run", TS: ts, Stage: StageRunStart})
	hub.Emit(Event{RunID: "run", TS: ts, Stage: StageStepDone, Step: 1, Outcome: OutcomeSubmitted})
	hub.Emit(Event{RunID: "run", TS: ts, Stage: StageStepDone, Step: 2, Outcome: OutcomeNoSubmit})
	hub.Emit(Event{RunID: "run", TS: ts, Stage: StageRunDone, Reason: "NoSubmitEndpoint"})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("steps reported: %d\n", steps)
	// Output:
	// steps reported: 2
}
