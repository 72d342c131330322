// Package admin implements the operator console: a registered session whose
// input is a line reader and whose output is a terminal.
package admin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/metrics"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/relay"
	"github.com/wilsonzlin/aero/proxy/webrtc-chat-relay/internal/session"
)

const (
	Prompt     = "ADMIN> "
	whoCommand = "/who"
)

type Broadcaster interface {
	Broadcast(msg string, exclude session.ID) int
}

type Config struct {
	Registry    *session.Registry
	Broadcaster Broadcaster
	Nickname    string

	In  io.Reader
	Out io.Writer
	// MaxLineBytes bounds one line of operator input. Longer lines are
	// skipped. Zero means bufio.MaxScanTokenSize.
	MaxLineBytes int
	// Color renders the prompt and relayed chat with terminal colors when the
	// output supports them.
	Color bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type Console struct {
	cfg    Config
	logger *slog.Logger
	out    *terminal
	sess   *session.Session
}

// NewConsole registers the operator session. Chat relayed to it is written to
// cfg.Out.
func NewConsole(cfg Config) (*Console, error) {
	if cfg.Registry == nil || cfg.Broadcaster == nil {
		return nil, errors.New("admin console requires a registry and a broadcaster")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = bufio.MaxScanTokenSize
	}
	if cfg.Nickname != "" {
		name, err := session.ValidateNickname(cfg.Nickname)
		if err != nil {
			return nil, fmt.Errorf("admin nickname: %w", err)
		}
		cfg.Nickname = name
	}

	out := &terminal{w: cfg.Out, color: cfg.Color, open: true}
	sess := session.New(cfg.Registry.NextID(), out, session.Options{
		Nickname: cfg.Nickname,
		Admin:    true,
		Logger:   cfg.Logger,
		Metrics:  cfg.Metrics,
	})
	if err := cfg.Registry.Register(sess); err != nil {
		_ = sess.Close()
		return nil, fmt.Errorf("register admin session: %w", err)
	}

	return &Console{
		cfg:    cfg,
		logger: cfg.Logger.With("session_id", uint64(sess.ID()), "admin", true),
		out:    out,
		sess:   sess,
	}, nil
}

func (c *Console) Session() *session.Session {
	return c.sess
}

// Run reads operator lines until the input ends or ctx is done. The admin
// session stays registered after Run returns; Close removes it.
func (c *Console) Run(ctx context.Context) error {
	if c.cfg.In == nil {
		return nil
	}

	lines := make(chan inputLine)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		split := &lineSplitter{max: c.cfg.MaxLineBytes}
		limit := c.cfg.MaxLineBytes + 3
		scanner := bufio.NewScanner(c.cfg.In)
		scanner.Buffer(make([]byte, 0, min(4096, limit)), limit)
		scanner.Split(split.split)
		for scanner.Scan() {
			select {
			case lines <- inputLine{text: scanner.Text(), tooLong: split.takeSkipped()}:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		c.out.prompt()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			c.HandleLine(line.text)
		}
	}
}

type inputLine struct {
	text    string
	tooLong bool
}

// lineSplitter is bufio.ScanLines except that a line longer than max is
// dropped and reported as an empty token with skipped set, instead of
// failing the scan with bufio.ErrTooLong.
type lineSplitter struct {
	max        int
	discarding bool
	skipped    bool
}

func (l *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	if l.discarding {
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			l.discarding = false
			l.skipped = true
			return i + 1, []byte{}, nil
		}
		if atEOF {
			if len(data) > 0 {
				return len(data), nil, nil
			}
			l.discarding = false
			l.skipped = true
			return 0, []byte{}, nil
		}
		return len(data), nil, nil
	}

	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && len(bytes.TrimSuffix(data, []byte{'\r'})) > l.max {
		l.discarding = true
		return len(data), nil, nil
	}
	if token != nil && len(token) > l.max {
		l.skipped = true
		return advance, []byte{}, err
	}
	return advance, token, err
}

func (l *lineSplitter) takeSkipped() bool {
	skipped := l.skipped
	l.skipped = false
	return skipped
}

// HandleLine executes one line of operator input.
func (c *Console) HandleLine(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	if strings.TrimSpace(line) == whoCommand {
		c.who()
		return
	}

	in := relay.ParseInput(line)
	if in.Kind == relay.InputRename {
		if err := c.cfg.Registry.Rename(c.sess.ID(), in.Text); err != nil {
			c.out.printf("rename failed: %v\n", err)
			return
		}
		c.out.printf("nickname is now %s\n", c.sess.Nickname())
		c.logger.Info("admin renamed", "nickname", c.sess.Nickname())
		return
	}

	c.cfg.Metrics.Inc(metrics.AdminBroadcast)
	n := c.cfg.Broadcaster.Broadcast(relay.FormatChat(c.sess.Nickname(), in.Text, true), c.sess.ID())
	c.logger.Debug("admin broadcast", "recipients", n)
}

func (c *Console) who() {
	c.out.mu.Lock()
	defer c.out.mu.Unlock()

	table := tablewriter.NewWriter(c.out.w)
	table.SetHeader([]string{"ID", "Nickname", "Path"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")

	for s := range c.cfg.Registry.All() {
		table.Append([]string{strconv.FormatUint(uint64(s.ID()), 10), s.Nickname(), pathName(s)})
	}
	table.Render()
}

func pathName(s *session.Session) string {
	switch {
	case s.IsAdmin():
		return "console"
	case s.HasPeerChannel():
		return "webrtc"
	default:
		return "websocket"
	}
}

// Close unregisters and closes the admin session.
func (c *Console) Close() error {
	c.cfg.Registry.Unregister(c.sess.ID())
	return c.sess.Close()
}

// terminal is the admin session's delivery path.
type terminal struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	open  bool
}

var (
	promptStyle = color.New(color.FgCyan, color.OpBold)
	chatStyle   = color.New(color.FgGreen)
)

func (t *terminal) render(style color.Style, s string) string {
	if !t.color {
		return s
	}
	return style.Render(s)
}

func (t *terminal) Send(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.open {
		return session.ErrSessionClosed
	}
	_, err := io.WriteString(t.w, "\r"+t.render(chatStyle, msg)+"\n")
	return err
}

func (t *terminal) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *terminal) Close() error {
	t.mu.Lock()
	t.open = false
	t.mu.Unlock()
	return nil
}

func (t *terminal) prompt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, t.render(promptStyle, Prompt))
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = fmt.Fprintf(t.w, format, args...)
}
