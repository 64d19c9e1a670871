package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/farmsense/cava/backend/internal/model/registration"
	registrationService "github.com/farmsense/cava/backend/internal/service/registration"
)

// Script is a scripted conversation with optional per-turn expectations.
type Script struct {
	Name      string       `yaml:"name"`
	SessionID string       `yaml:"session_id"`
	Turns     []ScriptTurn `yaml:"turns"`
}

// ScriptTurn is one user message.
type ScriptTurn struct {
	Say    string       `yaml:"say"`
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation checks the response to a turn. Empty members are not checked.
type Expectation struct {
	State         string            `yaml:"state,omitempty"`
	Complete      *bool             `yaml:"complete,omitempty"`
	Fields        map[string]string `yaml:"fields,omitempty"`
	Missing       []string          `yaml:"missing,omitempty"`
	ReplyContains string            `yaml:"reply_contains,omitempty"`
	Registered    bool              `yaml:"registered,omitempty"`
}

var errScriptFailed = errors.New("script expectations failed")

var runCmd = &cobra.Command{
	Use:   "run <script.yaml>...",
	Short: "Replay scripted conversations and check the engine's answers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, logger, err := loadEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()
		defer func() { _ = logger.Sync() }()

		failed := 0
		for _, path := range args {
			script, err := loadScript(path)
			if err != nil {
				return err
			}
			if sessionID != "" {
				script.SessionID = sessionID
			}
			n, err := runScript(ctx, eng.svc, script, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			failed += n
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d", errScriptFailed, failed)
		}
		return nil
	},
}

func loadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	return parseScript(data)
}

func parseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if len(s.Turns) == 0 {
		return Script{}, errors.New("script has no turns")
	}
	for i, turn := range s.Turns {
		if turn.Expect == nil {
			continue
		}
		for _, key := range append(mapKeys(turn.Expect.Fields), turn.Expect.Missing...) {
			if _, ok := registration.ParseField(key); !ok {
				return Script{}, fmt.Errorf("turn %d: unknown field %q", i+1, key)
			}
		}
	}
	if s.SessionID == "" {
		s.SessionID = "script-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s.Name)), " ", "-")
	}
	return s, nil
}

// runScript plays every turn and returns the number of failed expectations.
func runScript(ctx context.Context, svc *registrationService.Service, s Script, out io.Writer) (int, error) {
	if s.Name != "" {
		fmt.Fprintln(out, passStyle.Render("== "+s.Name))
	}

	failed := 0
	for i, turn := range s.Turns {
		printUser(out, turn.Say)
		resp, err := svc.HandleMessage(ctx, registrationService.Request{SessionID: s.SessionID, MessageText: turn.Say})
		if err != nil && !resp.Retryable {
			return failed, fmt.Errorf("turn %d: %w", i+1, err)
		}
		printReply(out, resp)

		if turn.Expect == nil {
			continue
		}
		for _, problem := range check(*turn.Expect, resp) {
			failed++
			fmt.Fprintln(out, failStyle.Render(fmt.Sprintf("  turn %d: %s", i+1, problem)))
		}
	}

	if failed == 0 {
		fmt.Fprintln(out, passStyle.Render("PASS"))
	} else {
		fmt.Fprintln(out, failStyle.Render(fmt.Sprintf("FAIL (%d)", failed)))
	}
	return failed, nil
}

func check(want Expectation, got registrationService.Response) []string {
	var problems []string

	if want.State != "" && !strings.EqualFold(want.State, string(got.State)) {
		problems = append(problems, fmt.Sprintf("state is %s, want %s", got.State, strings.ToUpper(want.State)))
	}
	if want.Complete != nil && *want.Complete != got.RegistrationComplete {
		problems = append(problems, fmt.Sprintf("registration_complete is %t, want %t", got.RegistrationComplete, *want.Complete))
	}
	for _, key := range mapKeys(want.Fields) {
		f, _ := registration.ParseField(key)
		value, ok := got.ExtractedFields[f]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s is missing, want %q", f, want.Fields[key]))
			continue
		}
		if !registration.SameValue(f, value, want.Fields[key]) {
			problems = append(problems, fmt.Sprintf("%s is %q, want %q", f, value, want.Fields[key]))
		}
	}
	for _, key := range want.Missing {
		f, _ := registration.ParseField(key)
		if value, ok := got.ExtractedFields[f]; ok {
			problems = append(problems, fmt.Sprintf("%s is %q, want it unset", f, value))
		}
	}
	if want.ReplyContains != "" && !strings.Contains(strings.ToLower(got.ReplyText), strings.ToLower(want.ReplyContains)) {
		problems = append(problems, fmt.Sprintf("reply %q does not mention %q", got.ReplyText, want.ReplyContains))
	}
	if want.Registered && got.FarmerID == "" {
		problems = append(problems, "no farmer record was created")
	}
	return problems
}

func mapKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
