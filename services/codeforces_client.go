package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"student-progress-system/utils"
)

// Typed judge-client failures. Callers branch with errors.Is; the wrapped
// message carries the judge's own comment where one was returned.
var (
	ErrRemoteUnavailable = errors.New("judge service unavailable")
	ErrUnknownHandle     = errors.New("unknown handle")
	ErrMalformedResponse = errors.New("malformed judge response")
)

// SubmissionFetchLimit caps user.status to the most recent N submissions.
const SubmissionFetchLimit = 1000

// CFUser is the profile slice of a user.info result entry.
type CFUser struct {
	Handle    string `json:"handle"`
	Rating    int    `json:"rating"`
	MaxRating int    `json:"maxRating"`
}

// CFProblem is the problem object embedded in a submission.
type CFProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    *int     `json:"rating,omitempty"`
	Tags      []string `json:"tags"`
}

// CFSubmission is one user.status result entry.
type CFSubmission struct {
	ID                  int64     `json:"id"`
	ContestID           int       `json:"contestId"`
	CreationTimeSeconds int64     `json:"creationTimeSeconds"`
	ProgrammingLanguage string    `json:"programmingLanguage"`
	Verdict             string    `json:"verdict"`
	TimeConsumedMillis  int       `json:"timeConsumedMillis"`
	MemoryConsumedBytes int64     `json:"memoryConsumedBytes"`
	Problem             CFProblem `json:"problem"`
}

// CFRatingChange is one user.rating result entry.
type CFRatingChange struct {
	ContestID               int    `json:"contestId"`
	ContestName             string `json:"contestName"`
	Rank                    int    `json:"rank"`
	RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
	OldRating               int    `json:"oldRating"`
	NewRating               int    `json:"newRating"`
}

// JudgeClient fetches one handle's public data from the judge service. The
// three calls are independent; none of them retries. Retry/skip policy
// belongs to the orchestrator.
type JudgeClient interface {
	FetchUserInfo(ctx context.Context, handle string) (*CFUser, error)
	FetchSubmissions(ctx context.Context, handle string, count int) ([]CFSubmission, error)
	FetchRatingHistory(ctx context.Context, handle string) ([]CFRatingChange, error)
}

// CodeforcesClient talks to the public Codeforces REST API.
type CodeforcesClient struct {
	BaseURL string // e.g. "https://codeforces.com/api"
	Client  *http.Client
}

func NewCodeforcesClient(baseURL string) *CodeforcesClient {
	return &CodeforcesClient{
		BaseURL: baseURL,
		Client:  utils.HTTPClient,
	}
}

// apiEnvelope is the wrapper every Codeforces response carries. Status is
// "OK" or "FAILED"; Comment explains a failure.
type apiEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

func (c *CodeforcesClient) FetchUserInfo(ctx context.Context, handle string) (*CFUser, error) {
	raw, err := c.get(ctx, "user.info", url.Values{"handles": {handle}})
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	var users []CFUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, fmt.Errorf("fetch user info: %w: %v", ErrMalformedResponse, err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("fetch user info: %w: empty result for %q", ErrMalformedResponse, handle)
	}
	return &users[0], nil
}

func (c *CodeforcesClient) FetchSubmissions(ctx context.Context, handle string, count int) ([]CFSubmission, error) {
	raw, err := c.get(ctx, "user.status", url.Values{
		"handle": {handle},
		"count":  {strconv.Itoa(count)},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}

	var subs []CFSubmission
	if err := json.Unmarshal(raw, &subs); err != nil {
		return nil, fmt.Errorf("fetch submissions: %w: %v", ErrMalformedResponse, err)
	}
	return subs, nil
}

func (c *CodeforcesClient) FetchRatingHistory(ctx context.Context, handle string) ([]CFRatingChange, error) {
	raw, err := c.get(ctx, "user.rating", url.Values{"handle": {handle}})
	if err != nil {
		return nil, fmt.Errorf("fetch rating history: %w", err)
	}

	var history []CFRatingChange
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("fetch rating history: %w: %v", ErrMalformedResponse, err)
	}
	return history, nil
}

// get performs one API call and unwraps the envelope, returning the raw
// result payload.
func (c *CodeforcesClient) get(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	endpoint := base.JoinPath(method)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrRemoteUnavailable, err)
	}

	var envelope apiEnvelope
	if jsonErr := json.Unmarshal(body, &envelope); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrRemoteUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, jsonErr)
	}

	if envelope.Status != "OK" {
		// The comment distinguishes a missing handle from other failures,
		// e.g. "handles: User with handle X not found".
		if strings.Contains(strings.ToLower(envelope.Comment), "not found") {
			return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, envelope.Comment)
		}
		return nil, fmt.Errorf("%w: %s", ErrRemoteUnavailable, envelope.Comment)
	}
	return envelope.Result, nil
}
