// Package command_safety classifies shell commands as safe, dangerous, or unknown.
//
// guards.go implements the pre-execution CommandGuards: structured checks run
// before sandbox classification that can block a command outright and hand
// the model a "confirm:"-prefixed resend instead of a bare rejection.
//
// Maps to: codex-rs/core/src/safety.rs pre-exec guard chain (generalized)
package command_safety

import (
	"path/filepath"
	"regexp"
	"strings"
)

// GuardKind identifies which CommandGuard produced a block.
type GuardKind string

const (
	GuardNone           GuardKind = ""
	GuardUserRegex      GuardKind = "user_regex"
	GuardSensitiveGit   GuardKind = "sensitive_git"
	GuardDryRunRequired GuardKind = "dry_run_required"
	GuardRedundantCd    GuardKind = "redundant_cd"
	GuardCatHeredoc     GuardKind = "cat_heredoc"
	GuardPythonWrite    GuardKind = "python_write"
)

// SensitiveGitKind classifies the kind of sensitive git operation detected
// by DetectSensitiveGit.
type SensitiveGitKind string

const (
	SensitiveGitNone         SensitiveGitKind = ""
	SensitiveGitBranchChange SensitiveGitKind = "BranchChange"
	SensitiveGitPathCheckout SensitiveGitKind = "PathCheckout"
	SensitiveGitReset        SensitiveGitKind = "Reset"
	SensitiveGitRevert       SensitiveGitKind = "Revert"
)

// confirmPrefix is the literal prefix a model resends to authorise a
// guard-blocked command. Matching is case-insensitive.
const confirmPrefix = "confirm:"

// shellWrappers lists the shells CommandGuards treats as script wrappers
// when the argv is [shell, -lc|-c, script].
var shellWrappers = map[string]bool{
	"bash": true, "sh": true, "zsh": true, "ksh": true, "fish": true, "dash": true,
}

// wrapperPrograms are argv[0] commands that merely re-exec their remaining
// arguments; guards skip past them to find the real command.
var wrapperPrograms = map[string]bool{
	"sudo": true, "command": true, "time": true, "nohup": true, "nice": true,
}

// GuardBlock describes a CommandGuard that fired.
type GuardBlock struct {
	Kind          GuardKind
	Message       string
	SuggestedArgv []string
}

// GuardOptions bundles the per-session state CheckGuards needs.
type GuardOptions struct {
	// UserRegexGuards are the session's configured confirm-guard patterns
	// (G1), tested in order; the first match fires.
	UserRegexGuards []*regexp.Regexp
	// Cwd is the session's current working directory, used by G4.
	Cwd string
	// DryRunSeen reports whether a dry-run of the given command class was
	// observed recently in this session (G3).
	DryRunSeen func(class string) bool
}

// stripShellScript returns (script, true) when command is a recognised
// shell-wrapper invocation ([shell, -lc|-c, script]); otherwise ("", false).
func stripShellScript(command []string) (string, bool) {
	if len(command) != 3 {
		return "", false
	}
	if !shellWrappers[filepath.Base(command[0])] {
		return "", false
	}
	if command[1] != "-lc" && command[1] != "-c" {
		return "", false
	}
	return command[2], true
}

// scriptOf returns the text guards should analyze: the embedded script for
// a shell wrapper, or the argv joined with spaces otherwise.
func scriptOf(command []string) string {
	if script, ok := stripShellScript(command); ok {
		return script
	}
	return strings.Join(command, " ")
}

// stripQuotedSpans removes quote characters while preserving quoted content
// in place, so naive tokenising doesn't split on spaces inside quotes and
// doesn't need a full shell grammar.
func stripQuotedSpans(s string) string {
	var b strings.Builder
	inSingle, inDouble := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			} else {
				b.WriteByte(c)
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			} else {
				b.WriteByte(c)
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// guardTokenize splits a script into words plus the connector tokens
// "&&", "||", "|", ";", after stripping quote characters.
func guardTokenize(script string) []string {
	stripped := stripQuotedSpans(script)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(stripped); i++ {
		c := stripped[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			flush()
		case c == '&' && i+1 < len(stripped) && stripped[i+1] == '&':
			flush()
			tokens = append(tokens, "&&")
			i++
		case c == '|' && i+1 < len(stripped) && stripped[i+1] == '|':
			flush()
			tokens = append(tokens, "||")
			i++
		case c == '|':
			flush()
			tokens = append(tokens, "|")
		case c == ';':
			flush()
			tokens = append(tokens, ";")
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return tokens
}

var connectorTokens = map[string]bool{"&&": true, "||": true, "|": true, ";": true}

// splitSegments splits a tokenized script on connector tokens into
// independent command segments.
func splitSegments(tokens []string) [][]string {
	var segments [][]string
	var cur []string
	for _, tok := range tokens {
		if connectorTokens[tok] {
			if len(cur) > 0 {
				segments = append(segments, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, tok)
	}
	if len(cur) > 0 {
		segments = append(segments, cur)
	}
	return segments
}

// skipWrapperTokens strips leading re-exec wrappers (sudo/command/time/
// nohup/nice) and bare KEY=val environment assignments (including an
// explicit `env` invocation) from the front of a tokenized segment.
func skipWrapperTokens(tokens []string) []string {
	for len(tokens) > 0 {
		t := tokens[0]
		if wrapperPrograms[t] {
			tokens = tokens[1:]
			continue
		}
		if t == "env" {
			tokens = tokens[1:]
			for len(tokens) > 0 && (isEnvAssignment(tokens[0]) || strings.HasPrefix(tokens[0], "-")) {
				tokens = tokens[1:]
			}
			continue
		}
		if isEnvAssignment(t) {
			tokens = tokens[1:]
			continue
		}
		break
	}
	return tokens
}

func isEnvAssignment(tok string) bool {
	if tok == "" || strings.HasPrefix(tok, "-") {
		return false
	}
	eq := strings.IndexByte(tok, '=')
	if eq <= 0 {
		return false
	}
	name := tok[:eq]
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// skipGitGlobalOpts skips git global options (-C, --git-dir, --work-tree,
// -c) that may precede the subcommand.
func skipGitGlobalOpts(tokens []string) []string {
	i := 0
	for i < len(tokens) {
		t := tokens[i]
		switch {
		case t == "-C" || t == "-c" || t == "--git-dir" || t == "--work-tree":
			i += 2
		case strings.HasPrefix(t, "--git-dir=") || strings.HasPrefix(t, "--work-tree=") ||
			(strings.HasPrefix(t, "-c") && len(t) > 2) || (strings.HasPrefix(t, "-C") && len(t) > 2):
			i++
		default:
			return tokens[i:]
		}
	}
	return nil
}

// DetectSensitiveGit classifies a branch-changing or history-rewriting git
// invocation found anywhere in script (checkout, switch, reset, revert).
// Returns SensitiveGitNone when no such invocation is present.
//
// Maps to spec §4.8.1 Guard G2 / §8 P7.
func DetectSensitiveGit(script string) SensitiveGitKind {
	segments := splitSegments(guardTokenize(script))
	for _, seg := range segments {
		if kind := detectSensitiveGitSegment(seg); kind != SensitiveGitNone {
			return kind
		}
	}
	return SensitiveGitNone
}

func detectSensitiveGitSegment(tokens []string) SensitiveGitKind {
	tokens = skipWrapperTokens(tokens)
	if len(tokens) == 0 || filepath.Base(tokens[0]) != "git" {
		return SensitiveGitNone
	}
	rest := skipGitGlobalOpts(tokens[1:])
	if len(rest) == 0 {
		return SensitiveGitNone
	}
	switch rest[0] {
	case "switch":
		return SensitiveGitBranchChange
	case "checkout":
		if containsToken(rest[1:], "--") {
			return SensitiveGitPathCheckout
		}
		return SensitiveGitBranchChange
	case "reset":
		return SensitiveGitReset
	case "revert":
		return SensitiveGitRevert
	default:
		return SensitiveGitNone
	}
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// sensitiveGitGuidance builds the structured guidance message for a
// blocked sensitive-git command, including the confirm-prefixed resend.
func sensitiveGitGuidance(kind SensitiveGitKind, command []string) string {
	var label string
	switch kind {
	case SensitiveGitBranchChange:
		label = "Blocked git checkout/switch on a branch"
	case SensitiveGitPathCheckout:
		label = "Blocked git checkout of a path"
	case SensitiveGitReset:
		label = "Blocked git reset"
	case SensitiveGitRevert:
		label = "Blocked git revert"
	}
	return label + "; resend with the confirm: prefix to proceed: " + confirmArgvString(command)
}

func confirmArgvString(command []string) string {
	suggested := withConfirmPrefix(command)
	return argvDisplay(suggested)
}

func argvDisplay(argv []string) string {
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = `"` + a + `"`
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// withConfirmPrefix returns a copy of command with the literal "confirm: "
// prefix applied to its script (for shell wrappers) or its sole argument.
func withConfirmPrefix(command []string) []string {
	out := append([]string(nil), command...)
	if script, ok := stripShellScript(command); ok {
		out[2] = "confirm: " + script
		return out
	}
	if len(out) > 0 {
		out[len(out)-1] = "confirm: " + out[len(out)-1]
	}
	return out
}

// HasConfirmPrefix reports whether script begins with the literal
// "confirm:" marker (case-insensitive), ignoring leading whitespace.
func HasConfirmPrefix(script string) bool {
	trimmed := strings.TrimLeft(script, " \t")
	return len(trimmed) >= len(confirmPrefix) && strings.EqualFold(trimmed[:len(confirmPrefix)], confirmPrefix)
}

// StripConfirmPrefix removes a leading confirm: marker (and any following
// whitespace) from script. If script has no such marker, it is returned
// unchanged.
func StripConfirmPrefix(script string) string {
	trimmed := strings.TrimLeft(script, " \t")
	if !HasConfirmPrefix(trimmed) {
		return script
	}
	return strings.TrimLeft(trimmed[len(confirmPrefix):], " \t")
}

// shellMetaChars are characters that make a literal-path comparison for G4
// unsafe to perform (the token may not denote a literal filesystem path).
const shellMetaChars = "*?~$(){}[]!"

func containsShellMeta(s string) bool {
	return strings.ContainsAny(s, shellMetaChars)
}

// DetectRedundantCd reports a shell-wrapper command of the form
// `cd <literal-path> <connector> <rest>` where <literal-path> normalises
// to cwd, suggesting the argv with the leading `cd` stripped.
//
// Maps to spec §4.8.1 Guard G4 / §8 P7.
func DetectRedundantCd(command []string, cwd string) ([]string, bool) {
	script, ok := stripShellScript(command)
	if !ok {
		return nil, false
	}
	tokens := guardTokenize(script)
	if len(tokens) < 3 || tokens[0] != "cd" {
		return nil, false
	}
	path := tokens[1]
	if containsShellMeta(path) {
		return nil, false
	}
	if !connectorTokens[tokens[2]] || tokens[2] == "|" {
		return nil, false
	}
	if filepath.Clean(path) != filepath.Clean(cwd) {
		return nil, false
	}
	rest := tokens[3:]
	if len(rest) == 0 {
		return nil, false
	}
	remainder := strings.Join(rest, " ")
	suggested := []string{command[0], command[1], remainder}
	return suggested, true
}

// catHeredocWriteRe matches `cat <<[-]TAG ... > file`, i.e. a heredoc body
// redirected into a real file (not `>&N` or a process substitution).
var catHeredocWriteRe = regexp.MustCompile(`(?s)\bcat\s+<<-?\s*['"]?[A-Za-z_][A-Za-z0-9_]*['"]?[ \t]*>[ \t]*([^\s&()>][^\s]*)`)

// DetectCatWrite reports whether command contains a `cat <<TAG ... > file`
// heredoc-to-file write, which should go through apply_patch instead.
//
// Maps to spec §4.8.1 Guard G5 / §8 P7.
func DetectCatWrite(command []string) bool {
	return catHeredocWriteRe.MatchString(scriptOf(command))
}

var (
	pythonInvocationRe = regexp.MustCompile(`(?:^|[/\s])python[23]?(?:\s|$)`)
	pythonWriteRe       = regexp.MustCompile(`write_text\(|write_bytes\(`)
)

// DetectPythonWrite reports whether command invokes python/python3/python2
// with an inline (-c) or heredoc script that calls write_text(/write_bytes(.
//
// Maps to spec §4.8.1 Guard G6 / §8 P7.
func DetectPythonWrite(command []string) bool {
	text := scriptOf(command)
	if !pythonInvocationRe.MatchString(text) {
		return false
	}
	return pythonWriteRe.MatchString(text)
}

// mutatingDryRunClass describes a tool whose mutating subcommands have a
// known, cheap, non-mutating preview variant.
type mutatingDryRunClass struct {
	tool         string
	mutating     map[string]bool
	dryRunArgv   func(rest []string) []string
	dryRunLabel  string
}

var dryRunClasses = []mutatingDryRunClass{
	{
		tool:        "terraform",
		mutating:    map[string]bool{"apply": true, "destroy": true},
		dryRunLabel: "terraform plan",
		dryRunArgv: func(rest []string) []string {
			return append([]string{"terraform", "plan"}, rest...)
		},
	},
	{
		tool:        "kubectl",
		mutating:    map[string]bool{"apply": true, "delete": true, "replace": true},
		dryRunLabel: "kubectl ... --dry-run=client",
		dryRunArgv: func(rest []string) []string {
			out := append([]string{}, rest...)
			return append([]string{"kubectl"}, append(out, "--dry-run=client")...)
		},
	},
}

// classifyMutatingDryRun reports whether script invokes a known mutating
// subcommand of a dry-run-capable tool, returning the tool+subcommand class
// key and the canonical dry-run argv to suggest.
func classifyMutatingDryRun(script string) (class string, dryRunArgv []string, ok bool) {
	for _, seg := range splitSegments(guardTokenize(script)) {
		tokens := skipWrapperTokens(seg)
		if len(tokens) < 2 {
			continue
		}
		for _, c := range dryRunClasses {
			if filepath.Base(tokens[0]) != c.tool {
				continue
			}
			sub := tokens[1]
			if !c.mutating[sub] {
				continue
			}
			return c.tool + ":" + sub, c.dryRunArgv(tokens[2:]), true
		}
	}
	return "", nil, false
}

// CheckGuards applies Guards G1-G6, in order, to command before it is
// classified against the sandbox/approval FSM. It returns nil when no
// guard fires. A leading "confirm:" prefix (on the shell-wrapper script,
// stripped before returning the effective command) authorises the run,
// skipping every guard except G3's requirement that a dry-run of the same
// class was already observed.
//
// Maps to spec §4.8.1.
func CheckGuards(command []string, opts GuardOptions) (*GuardBlock, []string) {
	script, isShell := stripShellScript(command)
	confirmed := false
	effective := command
	if isShell && HasConfirmPrefix(script) {
		confirmed = true
		stripped := StripConfirmPrefix(script)
		effective = []string{command[0], command[1], stripped}
		script = stripped
	}

	if !confirmed {
		// G1: user-configured regex guards.
		for _, re := range opts.UserRegexGuards {
			if re.MatchString(scriptOf(command)) {
				return &GuardBlock{
					Kind:          GuardUserRegex,
					Message:       "Blocked by a configured command guard (" + re.String() + "); resend with the confirm: prefix to proceed: " + confirmArgvString(command),
					SuggestedArgv: withConfirmPrefix(command),
				}, command
			}
		}

		// G2: sensitive git operations.
		if kind := DetectSensitiveGit(scriptOf(command)); kind != SensitiveGitNone {
			return &GuardBlock{
				Kind:          GuardSensitiveGit,
				Message:       sensitiveGitGuidance(kind, command),
				SuggestedArgv: withConfirmPrefix(command),
			}, command
		}
	}

	// G3: dry-run-before-mutating. Applies even to a confirm-prefixed
	// resend: the confirm prefix authorises the *guard block*, not the
	// absence of a prior dry run.
	if class, dryRunArgv, ok := classifyMutatingDryRun(scriptOf(effective)); ok {
		seen := opts.DryRunSeen != nil && opts.DryRunSeen(class)
		if !seen {
			return &GuardBlock{
				Kind: GuardDryRunRequired,
				Message: "This command mutates infrastructure; run a dry-run first: " + argvDisplay(dryRunArgv) +
					". Once reviewed, resend with the confirm: prefix: " + confirmArgvString(command),
				SuggestedArgv: withConfirmPrefix(command),
			}, command
		}
	}

	if confirmed {
		return nil, effective
	}

	// G4: redundant `cd <cwd> && ...`.
	if suggested, ok := DetectRedundantCd(command, opts.Cwd); ok {
		return &GuardBlock{
			Kind:          GuardRedundantCd,
			Message:       "Redundant cd to the current working directory; resend without it: " + argvDisplay(suggested),
			SuggestedArgv: suggested,
		}, command
	}

	// G5: cat heredoc writing a file.
	if DetectCatWrite(command) {
		return &GuardBlock{
			Kind:          GuardCatHeredoc,
			Message:       "Writing files via `cat <<EOF > file` is blocked; use apply_patch instead, or resend with the confirm: prefix: " + confirmArgvString(command),
			SuggestedArgv: withConfirmPrefix(command),
		}, command
	}

	// G6: python inline/heredoc file write.
	if DetectPythonWrite(command) {
		return &GuardBlock{
			Kind:          GuardPythonWrite,
			Message:       "Writing files from an inline python script is blocked; use apply_patch instead, or resend with the confirm: prefix: " + confirmArgvString(command),
			SuggestedArgv: withConfirmPrefix(command),
		}, command
	}

	return nil, command
}

// CanonicalDryRunClass reports the mutating-command class (if any) for
// command, for callers that want to record a dry-run observation after a
// successful non-mutating run (e.g. `terraform plan`). class matches the
// key CheckGuards consults via GuardOptions.DryRunSeen.
func CanonicalDryRunClass(command []string) (class string, ok bool) {
	for _, seg := range splitSegments(guardTokenize(scriptOf(command))) {
		tokens := skipWrapperTokens(seg)
		if len(tokens) < 2 {
			continue
		}
		for _, c := range dryRunClasses {
			if filepath.Base(tokens[0]) != c.tool {
				continue
			}
			if tokens[1] == "plan" || containsToken(tokens, "--dry-run") || containsToken(tokens, "--dry-run=client") {
				return c.tool + ":" + mutatingSiblingFor(c, tokens[1]), true
			}
		}
	}
	return "", false
}

// mutatingSiblingFor maps a dry-run invocation's subcommand back to the
// mutating class key it authorises (terraform plan authorises both apply
// and destroy; kubectl --dry-run authorises the subcommand it was run as).
func mutatingSiblingFor(c mutatingDryRunClass, sub string) string {
	if c.tool == "terraform" {
		return "apply"
	}
	return sub
}
