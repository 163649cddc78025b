// Package update decides what happens when a command is re-run for a
// calendar day that already has archive output: classify the
// day's on-disk state, surface the choice to a UI collaborator for
// interactive modes, auto-update for fetch/bundle modes, and refresh
// existing article directories without ever deleting original content.
package update

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/capcat/capcat/internal/archive"
	"github.com/capcat/capcat/internal/domain/entity"
	"github.com/capcat/capcat/internal/layout"
	"github.com/capcat/capcat/internal/resilience/retry"
)

// DayState classifies the archive state for a calendar day against the
// set of sources a command wants to process.
type DayState int

const (
	// StateNoPriorWork means none of the expected per-source directories
	// exist yet.
	StateNoPriorWork DayState = iota

	// StateAllPresent means every expected directory exists and contains
	// at least one article.
	StateAllPresent

	// StatePartial means some expected directories exist and some don't.
	StatePartial

	// StateMixed means every expected directory exists but at least one
	// is empty (a run that created directories and then failed).
	StateMixed
)

func (s DayState) String() string {
	switch s {
	case StateNoPriorWork:
		return "no_prior_work"
	case StateAllPresent:
		return "all_present"
	case StatePartial:
		return "partial"
	case StateMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Action is the decision for a re-run day.
type Action int

const (
	ActionDownloadMissing Action = iota
	ActionUpdateExisting
	ActionCancel
)

// Mode distinguishes how the surrounding command was invoked. Single and
// interactive modes prompt via the UI collaborator; fetch and bundle
// modes auto-update without prompting.
type Mode int

const (
	ModeSingle Mode = iota
	ModeInteractive
	ModeFetch
	ModeBundle
)

// UI is the collaborator interactive modes delegate the choice to.
type UI interface {
	ChooseAction(state DayState, existing, missing int) (Action, error)
}

// Controller implements the re-run decision and the lightweight refresh
// of already-archived articles.
type Controller struct {
	client          *http.Client
	ui              UI
	logger          *slog.Logger
	livenessTimeout time.Duration
	now             func() time.Time
}

// NewController builds a Controller. ui may be nil when only
// non-interactive modes are used; client nil selects http.DefaultClient.
func NewController(client *http.Client, ui UI, logger *slog.Logger) *Controller {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:          client,
		ui:              ui,
		logger:          logger,
		livenessTimeout: 5 * time.Second,
		now:             time.Now,
	}
}

// ClassifyDay inspects the expected output directories for date and the
// given sources and returns the day's state plus the split of existing
// and missing source IDs.
func (c *Controller) ClassifyDay(root string, date time.Time, sources []entity.SourceDescriptor) (DayState, []string, []string) {
	batchRoot := layout.BatchRoot(root, date)

	var existing, missing []string
	anyEmpty := false
	for _, d := range sources {
		dir := layout.SourceDir(batchRoot, d.DisplayName, date)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			missing = append(missing, d.SourceID)
			continue
		}
		existing = append(existing, d.SourceID)
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) == 0 {
			anyEmpty = true
		}
	}

	switch {
	case len(existing) == 0:
		return StateNoPriorWork, existing, missing
	case len(missing) > 0:
		return StatePartial, existing, missing
	case anyEmpty:
		return StateMixed, existing, missing
	default:
		return StateAllPresent, existing, missing
	}
}

// Decide maps (mode, state) to an action. Fresh days always download;
// fetch/bundle re-runs auto-update; single/interactive re-runs ask the
// UI collaborator.
func (c *Controller) Decide(mode Mode, state DayState, existing, missing int) (Action, error) {
	if state == StateNoPriorWork {
		return ActionDownloadMissing, nil
	}

	switch mode {
	case ModeFetch, ModeBundle:
		return ActionUpdateExisting, nil
	default:
		if c.ui == nil {
			return ActionUpdateExisting, nil
		}
		return c.ui.ChooseAction(state, existing, missing)
	}
}

const (
	footerMarker  = "*Last Updated:"
	warningMarker = "> **Warning:**"
)

var footerBlockRe = regexp.MustCompile(`(?m)\n*---\n\*Last Updated:[^\n]*\n?$`)

// RefreshArticleDir performs the lightweight update for an existing
// article directory: a HEAD liveness check against the article URL, then
// either a refreshed Last Updated footer or an appended warning block in
// article.md. Original content is never deleted.
func (c *Controller) RefreshArticleDir(ctx context.Context, articleDir, articleURL string) error {
	path := filepath.Join(articleDir, "article.md")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", entity.ErrFileSystemError, path, err)
	}

	alive := c.checkLiveness(ctx, articleURL)
	content := footerBlockRe.ReplaceAllString(string(data), "")
	content = strings.TrimRight(content, "\n") + "\n"

	if alive {
		content += fmt.Sprintf("\n---\n%s %s*\n", footerMarker, c.now().Format("02 Jan 2006 15:04 MST"))
	} else if !strings.Contains(content, warningMarker) {
		content += fmt.Sprintf("\n%s source link unavailable as of %s: %s\n",
			warningMarker, c.now().Format("02 Jan 2006"), articleURL)
	}

	return archive.WriteFileAtomic(path, []byte(content), 0o644)
}

// checkLiveness issues a HEAD request with a short timeout, retried with
// the fast liveness schedule; any 2xx/3xx counts as alive.
func (c *Controller) checkLiveness(ctx context.Context, rawURL string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, c.livenessTimeout)
	defer cancel()

	alive := false
	err := retry.WithBackoff(reqCtx, retry.LivenessCheckConfig(), func() error {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "CapcatBot/1.0")
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", entity.ErrNetworkError, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			return &retry.HTTPError{StatusCode: resp.StatusCode, Message: rawURL}
		}
		alive = true
		return nil
	})
	if err != nil {
		c.logger.Debug("liveness check failed",
			slog.String("url", rawURL), slog.Any("error", err))
	}
	return alive
}
