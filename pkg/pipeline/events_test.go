package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitter_SubscriptionOrder(t *testing.T) {
	em := NewEmitter()

	var seen []string
	em.Subscribe(EventStageStart, func(ev Event) { seen = append(seen, "named-1") })
	em.Subscribe(EventStageStart, func(ev Event) { seen = append(seen, "named-2") })
	em.SubscribeAll(func(ev Event) { seen = append(seen, "all") })

	em.Emit(EventStageStart, StageStartEvent{StageName: "gather"})
	em.Emit(EventStageComplete, StageCompleteEvent{StageName: "gather"})

	assert.Equal(t, []string{"named-1", "named-2", "all", "all"}, seen)
}

func TestEmitter_NamedFilter(t *testing.T) {
	em := NewEmitter()

	var starts int
	em.Subscribe(EventStageStart, func(ev Event) { starts++ })

	em.Emit(EventStageStart, StageStartEvent{StageName: "a"})
	em.Emit(EventStageError, StageErrorEvent{StageName: "a", Error: "boom"})
	em.Emit(EventStageStart, StageStartEvent{StageName: "b"})

	assert.Equal(t, 2, starts)
}

func TestPrefixStage(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		stage   string
		payload any
	}{
		{
			name:  "stage start",
			event: Event{Name: EventStageStart, Payload: StageStartEvent{StageName: "inner", Model: "m"}},
			stage: "delegate/inner",
		},
		{
			name:  "stage error keeps fatality",
			event: Event{Name: EventStageError, Payload: StageErrorEvent{StageName: "inner", Error: "boom", Fatal: true}},
			stage: "delegate/inner",
		},
		{
			name:  "tool end keeps call id",
			event: Event{Name: EventStageToolEnd, Payload: StageToolEndEvent{StageName: "inner", CallID: "c-1", Success: true}},
			stage: "delegate/inner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := prefixStage("delegate", tt.event)
			assert.Equal(t, tt.stage, stageOf(out))
			assert.Equal(t, tt.event.Name, out.Name)
		})
	}

	// Fields other than the stage name survive the rewrite.
	out := prefixStage("delegate", Event{
		Name:    EventStageError,
		Payload: StageErrorEvent{StageName: "inner", Error: "boom", Fatal: true},
	})
	payload := out.Payload.(StageErrorEvent)
	assert.Equal(t, "boom", payload.Error)
	assert.True(t, payload.Fatal)
}

func TestPrefixStage_PipelineEventsUntouched(t *testing.T) {
	ev := Event{Name: EventPipelineComplete, Payload: &Result{SkillName: "inner"}}
	out := prefixStage("delegate", ev)
	assert.Equal(t, ev, out)
}
