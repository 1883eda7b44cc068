package quality

import (
	"strings"
	"testing"

	"github.com/cognicore/corposcope/pkg/corposcope/config"
)

func newCorruptionDetector() *CorruptionDetector {
	return NewCorruptionDetector(config.Default().Quality.Corruption)
}

// cleanProse is long enough to pass the minimum-length exemption and has
// sane sentence lengths throughout.
const cleanProse = "The exchange reported steady volume through the session. " +
	"Funding rates stayed close to neutral on the major venues. " +
	"Open interest grew modestly while realized volatility declined."

func TestCorruptionShortTextExempt(t *testing.T) {
	d := newCorruptionDetector()
	res := d.Detect("tiny fragment")
	if res.IsCorrupted {
		t.Error("short text marked corrupted")
	}
	if res.CorruptionScore != 0 {
		t.Errorf("score = %.2f, want 0", res.CorruptionScore)
	}
	if res.Reason != "text too short" {
		t.Errorf("reason = %q, want exemption reason", res.Reason)
	}
}

func TestCorruptionCleanText(t *testing.T) {
	d := newCorruptionDetector()
	res := d.Detect(cleanProse)
	if res.IsCorrupted {
		t.Errorf("clean prose marked corrupted: score %.2f issues %v", res.CorruptionScore, res.IssuesFound)
	}
}

func TestCorruptionEncodingErrors(t *testing.T) {
	d := newCorruptionDetector()
	text := cleanProse + ` The payload held \x41 and \\u0042 and \N{DASH} and \x43 artifacts.`
	res := d.Detect(text)
	if !res.IsCorrupted {
		t.Fatalf("escape artifacts not detected: score %.2f", res.CorruptionScore)
	}
	if !containsIssue(res.IssuesFound, issueEncodingErrors) {
		t.Errorf("issues = %v, want %s", res.IssuesFound, issueEncodingErrors)
	}
}

func TestCorruptionGibberish(t *testing.T) {
	d := newCorruptionDetector()
	text := "The exchange reported steady volume through the session, " + strings.Repeat("#$%@!&*^~|", 4) + " then a normal close."
	res := d.Detect(text)
	if !res.IsCorrupted {
		t.Fatalf("symbol run not detected: score %.2f", res.CorruptionScore)
	}
	if !containsIssue(res.IssuesFound, issueGibberish) {
		t.Errorf("issues = %v, want %s", res.IssuesFound, issueGibberish)
	}
}

func TestCorruptionHTMLArtifacts(t *testing.T) {
	d := newCorruptionDetector()
	text := strings.Repeat("<div><span>residual markup</span></div> ", 8)
	res := d.Detect(text)
	if !res.IsCorrupted {
		t.Fatalf("html residue not detected: score %.2f", res.CorruptionScore)
	}
	if !containsIssue(res.IssuesFound, issueFormatErrors) {
		t.Errorf("issues = %v, want %s", res.IssuesFound, issueFormatErrors)
	}
}

func TestCorruptionScoreIsMaxOfSubScores(t *testing.T) {
	d := newCorruptionDetector()
	// Encoding artifacts alone: two matches score 0.2, below the issue
	// threshold, so the composite stays under the corruption threshold.
	text := cleanProse + ` One stray \x41 and one \x42 only.`
	res := d.Detect(text)
	if res.IsCorrupted {
		t.Errorf("two artifacts should stay below threshold, score %.2f", res.CorruptionScore)
	}
	if containsIssue(res.IssuesFound, issueEncodingErrors) {
		t.Errorf("sub-threshold check reported as issue: %v", res.IssuesFound)
	}
}

func containsIssue(issues []string, want string) bool {
	for _, i := range issues {
		if i == want {
			return true
		}
	}
	return false
}
