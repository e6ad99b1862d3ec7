package consultnode

import (
	"fmt"

	"github.com/medconsult/medconsult/agent/audit"
	contractx "github.com/medconsult/medconsult/agent/contract"
)

// stepKinds maps a step outcome onto its audit kind.
var stepKinds = map[contractx.StepKind]string{
	contractx.StepAskedQuestion:      audit.KindQuestion,
	contractx.StepHandedOff:          audit.KindHandoff,
	contractx.StepSpecialistAnswered: audit.KindAssessment,
	contractx.StepFinished:           audit.KindSummary,
}

// FinalizeResult reports both sides of the applied turn to the sink and the
// audit recorder, then unwraps the result.
func FinalizeResult(in *GraphState, sink contractx.TurnSink, recorder *audit.Recorder) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	label := contractx.IntakeDoctorName
	if in.Result.Kind == contractx.StepSpecialistAnswered {
		label = in.Result.SpecialistName
	}
	kind := stepKinds[in.Result.Kind]

	if sink != nil {
		sink.LogTurn("Patient", in.Text, audit.KindPatient)
		sink.LogTurn(label, in.Result.Reply, kind)
	}
	if recorder != nil {
		recorder.Record(in.SessionID, "Patient", in.Text, audit.KindPatient)
		recorder.Record(in.SessionID, label, in.Result.Reply, kind)
	}

	return GraphOutput{Result: in.Result}, nil
}
