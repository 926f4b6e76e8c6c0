package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/logging"
)

// page states reported by the outcome script
const (
	outcomeResults = "results"
	outcomeEmpty   = "empty"
	outcomePending = "pending"
)

// Search loads the search page fresh, fills only the attempt's fields (clearing the others),
// submits and waits for either a results table (true) or the no-results message (false).
// Anything else is an AutomationError.
func (s *Session) Search(ctx context.Context, attempt entities.SearchAttempt) (bool, error) {
	sel := s.opts.Selectors

	navCtx, cancel := s.actionContext(ctx, s.opts.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(s.opts.SearchURL),
		chromedp.WaitReady(sel.SubmitButton, chromedp.ByQuery),
	); err != nil {
		return false, apperrors.NewAutomationError("navigate", err)
	}

	if err := chromedp.Run(navCtx, fillActions(sel, attempt)...); err != nil {
		return false, apperrors.NewAutomationError("fill", err)
	}

	if err := chromedp.Run(navCtx, chromedp.Click(sel.SubmitButton, chromedp.ByQuery)); err != nil {
		return false, apperrors.NewAutomationError("submit", err)
	}

	waitCtx, cancelWait := s.actionContext(ctx, s.opts.ResultsTimeout)
	defer cancelWait()

	outcome, err := s.waitForOutcome(waitCtx)
	if err != nil {
		return false, err
	}

	logging.Debug("Portal search finished", "outcome", outcome)
	return outcome == outcomeResults, nil
}

// fillActions sets every known field, empty values clear whatever the form kept
func fillActions(sel Selectors, attempt entities.SearchAttempt) []chromedp.Action {
	fields := []struct {
		selector string
		value    string
	}{
		{sel.NameInput, attempt.Name},
		{sel.SubstanceInput, attempt.ActiveSubstance},
		{sel.DosageInput, attempt.Dosage},
	}

	actions := make([]chromedp.Action, 0, len(fields))
	for _, f := range fields {
		if f.selector == "" {
			continue
		}
		actions = append(actions, chromedp.SetValue(f.selector, f.value, chromedp.ByQuery))
	}
	return actions
}

func (s *Session) waitForOutcome(ctx context.Context) (string, error) {
	script := outcomeScript(s.opts.Selectors)
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		var state string
		err := chromedp.Run(ctx, chromedp.Evaluate(script, &state))
		if err == nil && state != outcomePending {
			return state, nil
		}

		select {
		case <-ctx.Done():
			cause := ctx.Err()
			if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				cause = fmt.Errorf("%w (last evaluation error: %v)", cause, err)
			}
			return "", apperrors.NewAutomationError("wait", cause)
		case <-ticker.C:
		}
	}
}

// ResultRows returns the trimmed text of every cell of every results table row, in table order
func (s *Session) ResultRows(ctx context.Context) ([][]string, error) {
	rowsCtx, cancel := s.actionContext(ctx, s.opts.ResultsTimeout)
	defer cancel()

	var rows [][]string
	if err := chromedp.Run(rowsCtx, chromedp.Evaluate(rowsScript(s.opts.Selectors), &rows)); err != nil {
		return nil, apperrors.NewAutomationError("rows", err)
	}
	return rows, nil
}

// TriggerDownload clicks the document link of a result row (0-based)
func (s *Session) TriggerDownload(ctx context.Context, rowIndex int) error {
	clickCtx, cancel := s.actionContext(ctx, s.opts.ClickTimeout)
	defer cancel()

	return chromedp.Run(clickCtx, chromedp.Click(DownloadSelector(s.opts.Selectors, rowIndex), chromedp.ByQuery))
}

// DownloadSelector addresses the download link of a 0-based result row
func DownloadSelector(sel Selectors, rowIndex int) string {
	return fmt.Sprintf("%s tbody tr:nth-child(%d) %s", sel.ResultsTable, rowIndex+1, sel.DownloadLink)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func outcomeScript(sel Selectors) string {
	return fmt.Sprintf(`(() => {
	if (document.querySelector(%s)) return %q;
	const pattern = %s;
	const text = document.body ? document.body.innerText : "";
	if (pattern && new RegExp(pattern, "i").test(text)) return %q;
	return %q;
})()`, jsString(sel.ResultsTable), outcomeResults, jsString(sel.NoResultsPattern), outcomeEmpty, outcomePending)
}

func rowsScript(sel Selectors) string {
	return fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(
	(row) => Array.from(row.querySelectorAll("td")).map((td) => (td.innerText || "").trim())
)`, jsString(sel.ResultsTable+" tbody tr"))
}
