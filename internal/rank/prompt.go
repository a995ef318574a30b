// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package rank

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/trialmatch/pkg/types"
)

const systemPrompt = "You are a helpful assistant that ranks clinical trials based on user profiles. " +
	`Respond with a JSON object of the form {"rating": <integer 1-10>, "explanation": "<one or two sentences>"}.`

// rankPromptTmpl is the per-trial prompt. It carries the five profile
// fields and the trial fields the model needs to judge fit.
var rankPromptTmpl = template.Must(template.New("rank").Parse(`Given the following user profile and clinical trial information, rate the relevance of the trial to the user on a scale of 1 to 10.
10 means an excellent match, and 1 means a poor match. Provide a brief explanation for your rating.

User Profile:
Conditions: {{.Profile.Conditions}}
Past Treatments: {{.Profile.PriorTreatments}}
Outcomes: {{.Profile.Outcomes}}
Side Effects: {{.Profile.SideEffects}}
Discontinuation Reasons: {{.Profile.DiscontinuationReasons}}

Clinical Trial:
Title: {{.Trial.Title}}
Description: {{.Trial.Description}}
Phase: {{.Trial.Phase}}
Location: {{.Trial.Location}}
`))

func renderPrompt(p types.UserProfile, t types.TrialRecord) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Profile types.UserProfile
		Trial   types.TrialRecord
	}{p, t}
	if err := rankPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
