package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	jsonBlockRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
	actionLineRe = regexp.MustCompile(`(?im)^[ \t]*(?:\*\*)?action(?:\*\*)?[ \t]*:(?:\*\*)?[ \t]*(.+?)[ \t]*$`)
)

type jsonReply struct {
	Reason string `json:"reason"`
	Action string `json:"action"`
}

// ParseResponse extracts the chosen action from a reply in either prompt
// format: a fenced JSON object with an "action" field, or an
// "Action: ..." line. The last match wins.
func ParseResponse(response string) (string, error) {
	if blocks := jsonBlockRe.FindAllStringSubmatch(response, -1); len(blocks) > 0 {
		for i := len(blocks) - 1; i >= 0; i-- {
			var r jsonReply
			if err := json.Unmarshal([]byte(blocks[i][1]), &r); err != nil {
				continue
			}
			if a := cleanAction(r.Action); a != "" {
				return a, nil
			}
		}
	}

	if lines := actionLineRe.FindAllStringSubmatch(response, -1); len(lines) > 0 {
		if a := cleanAction(lines[len(lines)-1][1]); a != "" {
			return a, nil
		}
	}

	return "", goerr.Wrap(ErrNoAction, "could not find action in response", goerr.Value("response", response))
}

// cleanAction strips quoting and a trailing period, as in
// `Action: "open door."`.
func cleanAction(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`\"'")
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}
