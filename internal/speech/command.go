package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/ashureev/belai/internal/domain"
	"github.com/ashureev/belai/internal/shared"
)

// candidateBinaries are probed in order when no TTS command is configured.
var candidateBinaries = []string{"espeak-ng", "espeak", "say"}

// CommandPlayer speaks through a local text-to-speech binary.
type CommandPlayer struct {
	binary string
	logger *slog.Logger

	voicesOnce sync.Once
	voices     []domain.Voice

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewCommandPlayer locates a TTS binary. An explicit command wins over the
// built-in candidates. Without any binary the player reports unsupported.
func NewCommandPlayer(command string, logger *slog.Logger) *CommandPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	p := &CommandPlayer{logger: logger}

	candidates := candidateBinaries
	if command != "" {
		candidates = []string{command}
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			p.binary = path
			break
		}
	}
	if p.binary == "" {
		logger.Info("no text-to-speech binary found, voice output disabled")
	}
	return p
}

// Supported reports whether a TTS binary was found.
func (p *CommandPlayer) Supported() bool {
	return p.binary != ""
}

// Voices lists the binary's voices. The list is read once.
func (p *CommandPlayer) Voices() []domain.Voice {
	if !p.Supported() {
		return nil
	}
	p.voicesOnce.Do(func() {
		flag := "--voices"
		if p.flavor() == "say" {
			flag = "-v?"
		}
		out, err := exec.Command(p.binary, flag).Output()
		if err != nil {
			p.logger.Warn("failed to list voices", "binary", p.binary, "error", err)
			return
		}
		if p.flavor() == "say" {
			p.voices = parseSayVoices(out)
		} else {
			p.voices = parseEspeakVoices(out)
		}
	})
	return append([]domain.Voice(nil), p.voices...)
}

func (p *CommandPlayer) flavor() string {
	return strings.TrimSuffix(filepath.Base(p.binary), filepath.Ext(p.binary))
}

// Speak starts narrating text, stopping any utterance in progress.
func (p *CommandPlayer) Speak(_ context.Context, text string, voiceID *string) error {
	if !p.Supported() {
		return &shared.CapabilityUnsupportedError{Capability: "speech synthesis"}
	}
	if text == "" {
		return nil
	}

	voice := ""
	if v, ok := ResolveVoice(p.Voices(), voiceID); ok {
		voice = v.ID
	}

	// Playback outlives the request that triggered it; only Cancel stops it.
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, p.binary, speakArgs(p.flavor(), voice)...)
	cmd.Stdin = strings.NewReader(text)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.mu.Unlock()

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start %s: %w", p.flavor(), err)
	}

	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			p.logger.Warn("speech playback failed", "binary", p.binary, "error", err)
		}
		cancel()
	}()
	return nil
}

// speakArgs builds the command line for one utterance. The text itself is
// always fed on stdin so AI output starting with "-" is never read as a flag.
// A custom TTS_COMMAND must read its text from stdin.
func speakArgs(flavor, voice string) []string {
	var args []string
	if voice != "" {
		args = append(args, "-v", voice)
	}
	switch flavor {
	case "espeak", "espeak-ng":
		args = append(args, "--stdin")
	case "say":
		args = append(args, "-f", "-")
	}
	return args
}

// Cancel stops the utterance in progress, if any.
func (p *CommandPlayer) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// parseEspeakVoices reads `espeak-ng --voices` output:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en
func parseEspeakVoices(out []byte) []domain.Voice {
	var voices []domain.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		lang := fields[1]
		voices = append(voices, domain.Voice{
			ID:       lang,
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: lang,
			Default:  lang == "en" || lang == "en-us",
		})
	}
	return voices
}

var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// parseSayVoices reads `say -v?` output:
//
//	Daniel              en_GB    # Hello! My name is Daniel.
func parseSayVoices(out []byte) []domain.Voice {
	var voices []domain.Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := sayVoiceLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, domain.Voice{
			ID:       name,
			Name:     name,
			Language: strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}
