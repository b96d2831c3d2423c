package common

import (
	"encoding/json"
	"fmt"
	"os"
)

type ciResult struct {
	Check   string   `json:"check"`
	Pass    bool     `json:"pass"`
	Details []string `json:"details,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// PrintCIResult emits a single machine-readable JSON line for CI pipelines.
func PrintCIResult(pass bool, check string, details []string, err error) {
	res := ciResult{Check: check, Pass: pass, Details: details}
	if err != nil {
		res.Error = err.Error()
	}
	out, mErr := json.Marshal(res)
	if mErr != nil {
		fmt.Fprintf(os.Stderr, "marshal ci result: %v\n", mErr)
		return
	}
	fmt.Println(string(out))
}
