package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navimind/navimind/pkg/models"
)

func TestParseDecision_FencedAction(t *testing.T) {
	text := "Looking at the page.\n```json\n{\n" +
		`  "observation": "search box is visible",` + "\n" +
		`  "reasoning": "need to search first",` + "\n" +
		`  "taskComplete": false,` + "\n" +
		`  "confidence": 0.9,` + "\n" +
		`  "action": {"type": "type", "params": {"selector": "#q", "text": "wireless mouse"}}` + "\n}\n```"

	d, err := ParseDecision(text)

	require.NoError(t, err)
	require.NotNil(t, d.NextAction)
	assert.Equal(t, models.ActionTypeText, d.NextAction.Type)
	assert.Equal(t, "wireless mouse", d.NextAction.Params["text"])
	assert.Equal(t, "need to search first", d.NextAction.Reasoning)
	assert.False(t, d.TaskComplete)
	assert.Equal(t, 0.9, d.Confidence)
	assert.NotEmpty(t, d.NextAction.ID)
}

func TestParseDecision_BareJSON(t *testing.T) {
	text := `Here is my decision: {"taskComplete": true, "result": "order placed", "confidence": 1}`

	d, err := ParseDecision(text)

	require.NoError(t, err)
	assert.True(t, d.TaskComplete)
	assert.Equal(t, "order placed", d.Result)
	assert.Nil(t, d.NextAction)
}

func TestParseDecision_CompleteActionEqualsTaskComplete(t *testing.T) {
	text := `{"action": {"type": "complete", "params": {"result": "done, 3 items found"}}}`

	d, err := ParseDecision(text)

	require.NoError(t, err)
	assert.True(t, d.TaskComplete)
	assert.Equal(t, "done, 3 items found", d.Result)
	assert.Nil(t, d.NextAction)
}

func TestParseDecision_NoActionNoComplete(t *testing.T) {
	_, err := ParseDecision(`{"observation": "hmm", "taskComplete": false}`)

	assert.ErrorIs(t, err, ErrNoAction)
}

func TestParseDecision_NoJSON(t *testing.T) {
	_, err := ParseDecision("I think we should click the button.")

	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestParseDecision_NestedBracesInStrings(t *testing.T) {
	text := `{"taskComplete": true, "result": "page said {status: ok}"}`

	d, err := ParseDecision(text)

	require.NoError(t, err)
	assert.Equal(t, "page said {status: ok}", d.Result)
}

func TestParsePlan(t *testing.T) {
	text := "```json\n" + `{
		"strategy": "search, filter by price, add to cart",
		"estimatedSteps": 5,
		"confidence": 0.75,
		"successCriteria": ["cart shows the item"],
		"risks": [{"description": "out of stock", "mitigation": "pick alternative"}]
	}` + "\n```"

	plan, err := ParsePlan(text)

	require.NoError(t, err)
	assert.Equal(t, 5, plan.EstimatedSteps)
	assert.Len(t, plan.Risks, 1)
	assert.Equal(t, "out of stock", plan.Risks[0].Description)
}

func TestParsePlan_EmptyStrategy(t *testing.T) {
	_, err := ParsePlan(`{"strategy": "  ", "confidence": 0.5}`)

	assert.Error(t, err)
}

func TestParseExtraction(t *testing.T) {
	data, err := ParseExtraction("```json\n{\"price\": 19.99, \"stock\": null}\n```")

	require.NoError(t, err)
	assert.JSONEq(t, `{"price": 19.99, "stock": null}`, string(data))
}
