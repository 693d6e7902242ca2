package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"agentbench/internal/cli/command"
	httpclient "agentbench/internal/cli/http"
	"agentbench/internal/cli/state"
	pkgerrors "agentbench/pkg/errors"
)

// Session holds REPL state.
type Session struct {
	client      *httpclient.Client
	commands    map[string]command.Command
	tokenState  *state.TokenState
	statePath   string
	historyPath string
	prettyJSON  bool
	rl          *readline.Instance
}

func New(client *httpclient.Client, commands map[string]command.Command, tokenState *state.TokenState, statePath, historyPath string, prettyJSON bool) *Session {
	return &Session{
		client:      client,
		commands:    commands,
		tokenState:  tokenState,
		statePath:   statePath,
		historyPath: historyPath,
		prettyJSON:  prettyJSON,
	}
}

func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "agentbench> ",
		HistoryFile:     s.historyPath,
		AutoComplete:    s.completer(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("init readline failed: %w", err)
	}
	defer rl.Close()
	s.rl = rl

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			s.printLine("bye")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input failed: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if done, handled := s.handleSystemCommand(line); handled {
			if done {
				return nil
			}
			continue
		}

		if err := s.handleCommand(ctx, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) completer() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(s.commands)+4)
	for key := range s.commands {
		parts := strings.SplitN(key, " ", 2)
		items = append(items, readline.PcItem(parts[0], readline.PcItem(parts[1])))
	}
	items = append(items,
		readline.PcItem("help"),
		readline.PcItem("exit"),
		readline.PcItem("set", readline.PcItem("base"), readline.PcItem("timeout"), readline.PcItem("token"), readline.PcItem("apikey")),
		readline.PcItem("show", readline.PcItem("token"), readline.PcItem("config")),
	)
	return readline.NewPrefixCompleter(items...)
}

func (s *Session) handleSystemCommand(line string) (done, handled bool) {
	switch line {
	case "exit", "quit":
		s.printLine("bye")
		return true, true
	case "help":
		s.printHelp()
		return false, true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return false, true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return false, true
	}
	return false, false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout|token|apikey")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8080")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "token":
		if len(parts) < 2 {
			s.printLine("usage: set token <jwt>")
			return
		}
		s.tokenState.Token = parts[1]
		s.saveState()
		s.printLine("token updated")
	case "apikey":
		if len(parts) < 2 {
			s.printLine("usage: set apikey <raw_key>")
			return
		}
		s.tokenState.APIKey = parts[1]
		s.saveState()
		s.printLine("api key updated")
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "token":
		s.printLine("token: %s", maskCredential(s.tokenState.Token))
		s.printLine("apikey: %s", maskCredential(s.tokenState.APIKey))
	case "config":
		s.printLine("tokenStatePath: %s", s.statePath)
		s.printLine("historyPath: %s", s.historyPath)
	default:
		s.printLine("usage: show token|config")
	}
}

func (s *Session) handleCommand(ctx context.Context, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	key := fmt.Sprintf("%s %s", tokens[0], tokens[1])
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s", key)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}

	if err := s.promptMissing(cmd, params); err != nil {
		return err
	}
	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.updateTokenFromResponse(cmd, resp.Body)
	return nil
}

func (s *Session) promptMissing(cmd command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required || params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(prompt string) (string, error) {
	s.rl.SetPrompt(prompt + ": ")
	defer s.rl.SetPrompt("agentbench> ")
	line, err := s.rl.Readline()
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) updateTokenFromResponse(cmd command.Command, body []byte) {
	if cmd.Service != "auth" {
		return
	}
	type sessionData struct {
		Token string `json:"token"`
	}
	type respEnvelope struct {
		Code int         `json:"code"`
		Data sessionData `json:"data"`
	}
	var resp respEnvelope
	if err := json.Unmarshal(body, &resp); err != nil {
		return
	}
	if resp.Code != int(pkgerrors.Success) || resp.Data.Token == "" {
		return
	}
	s.tokenState.Token = resp.Data.Token
	s.saveState()
	s.printLine("session token saved")
}

func (s *Session) saveState() {
	if err := state.Save(s.statePath, *s.tokenState); err != nil {
		s.printLine("save token state failed: %v", err)
	}
}

func maskCredential(value string) string {
	if value == "" {
		return "<empty>"
	}
	if len(value) > 12 {
		return value[:6] + "..." + value[len(value)-4:]
	}
	return value
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|token|apikey | show token|config")
	s.printLine("examples:")
	s.printLine("  auth register name=demo email=demo@example.com password=secret123")
	s.printLine("  submit create benchmark_id=1 agent_name=\"My Agent\" submission_type=github source_url=https://github.com/demo/agent")
	s.printLine("  submit status id=42")
	s.printLine("  leaderboard show industry=finance limit=10")
}

func (s *Session) printLine(format string, args ...interface{}) {
	fmt.Fprintf(s.rl.Stdout(), format+"\n", args...)
}
