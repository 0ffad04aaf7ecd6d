package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	survey "github.com/AlecAivazis/survey/v2"
	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"github.com/slitos/slit-install/internal/config"
	"github.com/slitos/slit-install/internal/exec"
	"github.com/slitos/slit-install/internal/hardware"
	"github.com/slitos/slit-install/internal/logging"
	"github.com/slitos/slit-install/pkg/errs"
	"github.com/slitos/slit-install/pkg/model"
)

var stdinReader = bufio.NewReader(os.Stdin)
var ansiEscapeRE = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
var caretEscapeRE = regexp.MustCompile(`\^\[\[[0-9;?]*[ -/]*[@-~]`)
var hostnameUnsafeRE = regexp.MustCompile(`[^a-z0-9-]+`)
var hyphenCollapseRE = regexp.MustCompile(`-+`)

func runConfigManager(ctx context.Context, logger zerolog.Logger, path string) error {
	fmt.Println()
	fmt.Println("\033[1mslit-install — Configuration Manager\033[0m")
	fmt.Println("──────────────────────────────────────────────────")

	for {
		exists := fileExists(path)

		options := []string{}
		actions := map[string]func() error{}

		if exists {
			label := fmt.Sprintf("[config]  Edit %s", filepath.Base(path))
			options = append(options, label)
			actions[label] = func() error { return upsertConfig(ctx, logger, path, true, "") }
		} else {
			label := fmt.Sprintf("[+config] Create %s", filepath.Base(path))
			options = append(options, label)
			actions[label] = func() error { return upsertConfig(ctx, logger, path, false, "") }
		}

		for _, d := range listConfigDrafts(path) {
			draftPath := d
			resumeLabel := fmt.Sprintf("\033[33m[draft]\033[0m   Resume %s", filepath.Base(draftPath))
			deleteLabel := fmt.Sprintf("\033[31m[draft]\033[0m   Delete %s", filepath.Base(draftPath))
			options = append(options, resumeLabel, deleteLabel)
			actions[resumeLabel] = func() error {
				return upsertConfig(ctx, logger, path, exists, draftPath)
			}
			actions[deleteLabel] = func() error {
				if err := os.Remove(draftPath); err != nil && !errors.Is(err, os.ErrNotExist) {
					return err
				}
				fmt.Printf("  \033[32m✓ Draft deleted:\033[0m %s\n\n", draftPath)
				return nil
			}
		}

		drivesLabel := "[drives]  Show detected drives"
		options = append(options, drivesLabel)
		actions[drivesLabel] = func() error { return showDrives(ctx, logger) }

		options = append(options, "Exit")

		var choice string
		prompt := &survey.Select{
			Message: "Select:",
			Options: options,
		}
		if err := survey.AskOne(prompt, &choice); err != nil {
			return nil // Ctrl+C / EOF
		}
		// Clear delayed terminal control responses left by survey rendering.
		drainStdin()
		if choice == "Exit" {
			fmt.Println()
			return nil
		}
		if fn := actions[choice]; fn != nil {
			if err := fn(); err != nil {
				return err
			}
		}
	}
}

func showDrives(ctx context.Context, logger zerolog.Logger) error {
	runner := exec.NewRunner(logging.Component(logger, "exec"), false)
	inv := hardware.NewInventory(logging.Component(logger, "hardware"), runner)
	drives := inv.Enumerate(ctx, true)
	if len(drives) == 0 {
		fmt.Println("No drives detected.")
		return nil
	}
	renderDriveTable(drives)
	return nil
}

func upsertConfig(ctx context.Context, logger zerolog.Logger, path string, edit bool, draftPath string) error {
	cfg := config.Default()
	if draftPath != "" {
		loaded, err := loadDraft(draftPath)
		if err != nil {
			return fmt.Errorf("load draft %s: %w", draftPath, err)
		}
		cfg = loaded
		fmt.Printf("\n\033[33m⚠ Resuming draft:\033[0m %s\n", filepath.Base(draftPath))
	} else if edit {
		loaded, err := config.Read(path)
		if err != nil {
			return err
		}
		cfg = loaded
	} else {
		applyDetectedDefaults(ctx, logger, &cfg)
	}

	fmt.Printf("\n%s: %s\n", map[bool]string{true: "Edit", false: "Create"}[edit], filepath.Base(path))
	fmt.Println(strings.Repeat("─", 40))
	stopInterruptHandler := startDraftInterruptHandler(path, func() ([]byte, bool) {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, false
		}
		return append(data, '\n'), true
	})
	defer stopInterruptHandler()

	cfg.TargetDrive = askTargetDrive(ctx, logger, cfg.TargetDrive)
	cfg.UserFullname = askValidated("Full name", cfg.UserFullname, validFullname, "a non-empty name up to 128 characters")
	cfg.Username = askValidated("Username", cfg.Username, config.ValidUsername, "starts with a letter or _; lowercase letters, digits, - and _; not a reserved name")
	applyHostnameSuggestion(&cfg)
	cfg.Hostname = askValidated("Hostname", cfg.Hostname, config.ValidHostname, "letters, digits and hyphens (e.g., slit-pc)")
	cfg.Locale = askValidated("Locale", cfg.Locale, config.ValidLocale, "ll_CC.UTF-8 (e.g., en_US.UTF-8)")
	cfg.Timezone = askValidated("Timezone", cfg.Timezone, config.ValidTimezone, "Region/City (e.g., America/New_York)")
	cfg.SwapSize = askValidated("Swap size", cfg.SwapSize, config.ValidSwapSize, "auto, or a size like 512M, 2G, 8G")
	cfg.Filesystem = askString("Root filesystem", cfg.Filesystem)

	askNetwork(&cfg.Network)
	askPassword(&cfg)
	cfg.SudoNoPasswd = askBool("Allow sudo without password", cfg.SudoNoPasswd)

	if err := cfg.Validate(); err != nil {
		fmt.Println()
		fmt.Println("\033[31m✗ Configuration still has problems:\033[0m")
		for _, issue := range errs.Issues(err) {
			fmt.Printf("  - %s\n", issue.Message)
		}
		return err
	}
	if err := cfg.Save(path); err != nil {
		return err
	}
	_ = cleanupConfigDrafts(path)
	fmt.Printf("  \033[32m✓ Saved:\033[0m %s\n\n", path)
	return nil
}

// applyDetectedDefaults seeds locale, timezone and interface from the running
// live system so a fresh config starts close to reality.
func applyDetectedDefaults(ctx context.Context, logger zerolog.Logger, cfg *config.SystemConfig) {
	runner := exec.NewRunner(logging.Component(logger, "exec"), false)
	det := config.NewDetector(logging.Component(logger, "detect"), runner)
	cfg.Locale = det.Locale(ctx)
	cfg.Timezone = det.Timezone(ctx)
	cfg.Network.Interface = det.Interface(ctx)
}

func askTargetDrive(ctx context.Context, logger zerolog.Logger, def string) string {
	runner := exec.NewRunner(logging.Component(logger, "exec"), false)
	inv := hardware.NewInventory(logging.Component(logger, "hardware"), runner)
	drives := inv.Enumerate(ctx, false)

	const manual = "Enter device path manually"
	options := make([]string, 0, len(drives)+1)
	byLabel := make(map[string]model.Drive, len(drives))
	defaultLabel := ""
	for _, d := range drives {
		label := driveLabel(d)
		options = append(options, label)
		byLabel[label] = d
		if d.Path == def {
			defaultLabel = label
		}
	}
	options = append(options, manual)

	for {
		choice := manual
		if len(drives) > 0 {
			prompt := &survey.Select{
				Message: "Target drive:",
				Options: options,
			}
			if defaultLabel != "" {
				prompt.Default = defaultLabel
			}
			if err := survey.AskOne(prompt, &choice); err != nil {
				return def
			}
			drainStdin()
		}
		if choice == manual {
			return askValidated("Target drive path", def, config.ValidDrivePath, "a whole-drive device path (e.g., /dev/sda, /dev/nvme0n1)")
		}
		d := byLabel[choice]
		if confirmDriveChoice(d, len(drives)) {
			return d.Path
		}
	}
}

func driveLabel(d model.Drive) string {
	label := fmt.Sprintf("%s - %d GB - %s", d.Path, d.SizeGB, d.Model)
	if d.HasWindows {
		label += " \033[31m[WINDOWS]\033[0m"
	}
	return label
}

// confirmDriveChoice demands a typed YES for the choices that destroy
// something irreplaceable: a drive carrying Windows, or the only drive.
func confirmDriveChoice(d model.Drive, totalDrives int) bool {
	switch {
	case d.HasWindows:
		fmt.Printf("\n\033[1;31m⚠ Windows appears to be installed on %s and will be DESTROYED\033[0m\n", d.Path)
	case totalDrives == 1:
		fmt.Printf("\n\033[1;33m⚠ %s is the only drive in this system\033[0m\n", d.Path)
	default:
		return true
	}
	return readLineClean("  Type YES to use this drive: ") == "YES"
}

func askNetwork(n *config.NetworkConfig) {
	n.Type = askSelect("Network type", []string{config.NetworkDHCP, config.NetworkStatic, config.NetworkManual}, n.Type)
	if n.Type == config.NetworkManual {
		return
	}
	n.Interface = askString("Network interface", n.Interface)
	if n.Type != config.NetworkStatic {
		return
	}
	if n.Netmask == "" {
		n.Netmask = "255.255.255.0"
	}
	n.IPAddress = askValidated("IP address", n.IPAddress, config.ValidIPv4, "Valid IP address (e.g., 192.168.1.100)")
	n.Netmask = askValidated("Netmask", n.Netmask, config.ValidNetmask, "Dotted netmask (e.g., 255.255.255.0)")
	n.Gateway = askValidated("Gateway", n.Gateway, config.ValidIPv4, "Valid gateway IP address")
	n.DNSServers = askOptionalValidated("DNS servers (comma-separated)", n.DNSServers, validDNSList, "IP addresses separated by commas")
	n.DomainSearch = askString("Search domains (optional)", n.DomainSearch)
}

func askPassword(cfg *config.SystemConfig) {
	message := "User password (min 8 chars):"
	if cfg.UserPassword != "" {
		message = "User password (min 8 chars, empty keeps current):"
	}
	for {
		var pw string
		if err := survey.AskOne(&survey.Password{Message: message}, &pw); err != nil {
			return
		}
		drainStdin()
		if pw == "" {
			return
		}
		if len(pw) < 8 {
			fmt.Println("  Password must be at least 8 characters.")
			continue
		}
		var confirm string
		if err := survey.AskOne(&survey.Password{Message: "Confirm password:"}, &confirm); err != nil {
			return
		}
		drainStdin()
		if pw != confirm {
			fmt.Println("  Passwords do not match.")
			continue
		}
		cfg.UserPassword = pw
		return
	}
}

func applyHostnameSuggestion(cfg *config.SystemConfig) {
	if strings.TrimSpace(cfg.Hostname) != "" {
		return
	}
	if normalized := normalizeHostname(cfg.Username); normalized != "" {
		cfg.Hostname = normalized + "-pc"
		return
	}
	cfg.Hostname = "slit-pc"
}

func normalizeHostname(in string) string {
	s := strings.ToLower(strings.TrimSpace(in))
	s = hostnameUnsafeRE.ReplaceAllString(s, "-")
	s = hyphenCollapseRE.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func validFullname(s string) bool {
	return s != "" && len(s) <= 128
}

func validDNSList(list string) bool {
	for _, part := range strings.Split(list, ",") {
		s := strings.TrimSpace(part)
		if s == "" {
			continue
		}
		if !config.ValidIPv4(s) {
			return false
		}
	}
	return true
}

func askString(msg, def string) string {
	def = sanitizeSuggestion(def)
	prompt := ""
	if def != "" {
		prompt = fmt.Sprintf("  %s [\033[36m%s\033[0m]: ", msg, def)
	} else {
		prompt = fmt.Sprintf("  %s: ", msg)
	}
	s := readLineClean(prompt)
	if s == "" {
		return def
	}
	return s
}

// askValidated keeps prompting until the answer passes valid. A rejected
// default is not offered again, so the loop cannot accept it by an empty
// answer either.
func askValidated(msg, def string, valid func(string) bool, expected string) string {
	for {
		s := askString(msg, def)
		if valid(s) {
			return s
		}
		fmt.Printf("  Invalid value. Expected: %s\n", expected)
		if s == def {
			def = ""
		}
	}
}

// askOptionalValidated is askValidated for fields where empty means unset.
func askOptionalValidated(msg, def string, valid func(string) bool, expected string) string {
	for {
		s := askString(msg, def)
		if s == "" || valid(s) {
			return s
		}
		fmt.Printf("  Invalid value. Expected: %s\n", expected)
		if s == def {
			def = ""
		}
	}
}

func askSelect(msg string, options []string, def string) string {
	choice := def
	prompt := &survey.Select{
		Message: msg + ":",
		Options: options,
	}
	for _, opt := range options {
		if opt == def {
			prompt.Default = def
		}
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return def
	}
	drainStdin()
	return choice
}

func askBool(msg string, def bool) bool {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	for {
		s := strings.ToLower(readLineClean(fmt.Sprintf("  %s %s: ", msg, hint)))
		switch s {
		case "":
			return def
		case "y", "yes":
			return true
		case "n", "no":
			return false
		}
		fmt.Println("  Please answer yes or no.")
	}
}

func readLineClean(prompt string) string {
	raw := readLineEditable(prompt)
	return sanitizeSuggestion(raw)
}

func readLineEditable(prompt string) string {
	rl, err := readline.NewEx(&readline.Config{Prompt: prompt})
	if err == nil {
		cleanup := func() {
			_ = rl.Close()
			// Keep bufio reader in sync after readline consumed stdin bytes.
			stdinReader.Reset(os.Stdin)
		}
		line, err := rl.Readline()
		if err == nil {
			cleanup()
			return line
		}
		if errors.Is(err, readline.ErrInterrupt) {
			// Restore terminal state before triggering the interrupt handler,
			// because the handler may call os.Exit(0), which skips defers.
			cleanup()
			if p, findErr := os.FindProcess(os.Getpid()); findErr == nil {
				_ = p.Signal(os.Interrupt)
			}
			return ""
		}
		cleanup()
	}
	fmt.Print(prompt)
	raw, _ := stdinReader.ReadString('\n')
	return raw
}

// sanitizeSuggestion strips ANSI escapes and control characters so stale
// terminal responses never end up inside a saved field.
func sanitizeSuggestion(in string) string {
	in = ansiEscapeRE.ReplaceAllString(in, "")
	in = caretEscapeRE.ReplaceAllString(in, "")
	in = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, in)
	return strings.TrimSpace(in)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadDraft(path string) (config.SystemConfig, error) {
	cfg := config.Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func cleanupConfigDrafts(targetPath string) error {
	for _, p := range listConfigDrafts(targetPath) {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func configDraftPath(targetPath string) string {
	base := filepath.Base(targetPath)
	return filepath.Join("tmp", fmt.Sprintf("%s.draft.json", base))
}

func listConfigDrafts(targetPath string) []string {
	base := filepath.Base(targetPath)
	pattern := filepath.Join("tmp", fmt.Sprintf("%s.draft*.json", base))
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		ii, errI := os.Stat(matches[i])
		jj, errJ := os.Stat(matches[j])
		if errI != nil || errJ != nil {
			return matches[i] > matches[j]
		}
		return ii.ModTime().After(jj.ModTime())
	})
	return matches
}

func startDraftInterruptHandler(targetPath string, dataFn func() ([]byte, bool)) func() {
	localSigCh := make(chan os.Signal, 1)
	signal.Notify(localSigCh, os.Interrupt)
	go func() {
		<-localSigCh
		data, ok := dataFn()
		if ok {
			if draftPath, err := writeConfigDraft(targetPath, data); err == nil {
				fmt.Printf("\n\033[33m⚠ Interrupted\033[0m\n")
				fmt.Printf("  Draft saved: %s\n", draftPath)
			}
		}
		fmt.Println("Cancelled.")
		restoreTTYOnExit()
		os.Exit(0)
	}()
	return func() {
		signal.Stop(localSigCh)
	}
}

func writeConfigDraft(targetPath string, data []byte) (string, error) {
	if err := os.MkdirAll("tmp", 0o700); err != nil {
		return "", err
	}
	draftPath := configDraftPath(targetPath)
	if err := os.WriteFile(draftPath, data, 0o600); err != nil {
		return "", err
	}
	return draftPath, nil
}
