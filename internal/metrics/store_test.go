package metrics

import (
	"testing"

	"ncreceiver/internal/model"
)

func TestRecordCountsByStage(t *testing.T) {
	s := NewStore()
	s.Record(model.DeliveryOutcome{Destination: model.DestinationDiscord, Success: true})
	s.Record(model.DeliveryOutcome{Destination: model.DestinationDiscord, Stage: model.StageNormalize})
	s.Record(model.DeliveryOutcome{Destination: model.DestinationDiscord, Stage: model.StageDeliver})
	s.Record(model.DeliveryOutcome{Destination: model.DestinationTeams, Stage: model.StageRender})
	s.Record(model.DeliveryOutcome{})

	st, ok := s.Get(model.DestinationDiscord)
	if !ok {
		t.Fatalf("missing discord stats")
	}
	if st.Received != 3 || st.Delivered != 1 || st.NormalizeFailure != 1 || st.DeliveryFailure != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
	if st.LastOutcomeAt.IsZero() {
		t.Fatalf("last outcome time not set")
	}
	all := s.GetAll()
	if len(all) != 2 || all[model.DestinationTeams].RenderFailure != 1 {
		t.Fatalf("unexpected all stats: %+v", all)
	}
	s.Clear()
	if _, ok := s.Get(model.DestinationDiscord); ok {
		t.Fatalf("expected stats cleared")
	}
}
