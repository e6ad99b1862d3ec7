package intake

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/medconsult/medconsult/agent/contract"
	statex "github.com/medconsult/medconsult/agent/state"
)

const summaryParam = "summary"

func consultToolName(spec statex.Specialty) string {
	return "consult_" + string(spec)
}

// consultTools builds one tool descriptor per specialty, each taking a
// single required clinical summary argument.
func consultTools() []*schema.ToolInfo {
	specs := statex.Specialties()
	tools := make([]*schema.ToolInfo, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, &schema.ToolInfo{
			Name: consultToolName(spec),
			Desc: fmt.Sprintf("Send the compiled clinical summary to the %s.", spec),
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				summaryParam: {
					Type:     schema.String,
					Desc:     "Structured clinical summary of the patient's reported symptoms",
					Required: true,
				},
			}),
		})
	}
	return tools
}

// toolSpecialties is the closed tool-name-to-specialty mapping. Resolution
// goes through this map only; substring matching on tool names is not done.
func toolSpecialties() map[string]statex.Specialty {
	specs := statex.Specialties()
	out := make(map[string]statex.Specialty, len(specs))
	for _, spec := range specs {
		out[consultToolName(spec)] = spec
	}
	return out
}

func parseSummaryArg(rawArgs string) (string, error) {
	trimmed := strings.TrimSpace(rawArgs)
	if trimmed == "" {
		return "", fmt.Errorf("%w: consult tool call has no arguments", contractx.ErrUpstreamProtocol)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return "", fmt.Errorf("%w: invalid consult tool arguments: %v", contractx.ErrUpstreamProtocol, err)
	}

	summary, _ := args[summaryParam].(string)
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", fmt.Errorf("%w: consult tool call is missing the %s argument", contractx.ErrUpstreamProtocol, summaryParam)
	}
	return summary, nil
}
