// Package testutil provides shared test utilities and mock implementations.
package testutil

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/runoshun/git-pilot/internal/domain"
)

// MockClock is a test double for domain.Clock.
type MockClock struct {
	NowTime time.Time
}

// Now returns the configured time.
func (m *MockClock) Now() time.Time {
	return m.NowTime
}

// StatusChange records one SetItemStatus call.
// Fields are ordered to minimize memory padding.
type StatusChange struct {
	Status domain.Status
	Issue  int
}

// SubmittedReview records one SubmitReview call.
// Fields are ordered to minimize memory padding.
type SubmittedReview struct {
	Body     string
	PR       int
	Approved bool
}

// MockTracker is a stateful test double for domain.Tracker. Mutations are
// applied to Items so a later ListItems sees them, and every call is
// recorded for assertions.
// Fields are ordered to minimize memory padding.
type MockTracker struct {
	Comments        map[int][]domain.Comment
	PRs             map[int]*domain.PullRequest
	PRsByBranch     map[string]*domain.PullRequest
	Checks          map[string]domain.ChecksState
	Closed          map[int]string
	ListErr         error
	CreateIssueErr  error
	CloseErr        error
	AddCommentErr   error
	ListCommentsErr error
	AddLabelErr     error
	RemoveLabelErr  error
	SetStatusErr    error
	FindPRErr       error
	CreatePRErr     error
	GetPRErr        error
	MergeErr        error
	ReviewErr       error
	DeleteBranchErr error
	ChecksErr       error
	Items           []*domain.Task
	AddedComments   []domain.Comment
	StatusChanges   []StatusChange
	Reviews         []SubmittedReview
	MergedPRs       []int
	DeletedBranches []string
	NextIssue       int
	NextPR          int
	NextCommentID   int64
	RateLimit       int
}

// NewMockTracker creates a new MockTracker with initialized maps.
func NewMockTracker() *MockTracker {
	return &MockTracker{
		Comments:    make(map[int][]domain.Comment),
		PRs:         make(map[int]*domain.PullRequest),
		PRsByBranch: make(map[string]*domain.PullRequest),
		Checks:      make(map[string]domain.ChecksState),
		Closed:      make(map[int]string),
		NextIssue:   100,
		NextPR:      500,
		RateLimit:   -1,
	}
}

// Ensure MockTracker implements domain.Tracker interface.
var _ domain.Tracker = (*MockTracker)(nil)

// ListItems returns a copy of the configured items.
func (m *MockTracker) ListItems(_ context.Context) ([]*domain.Task, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]*domain.Task(nil), m.Items...), nil
}

// CreateIssue appends a backlog task with the next issue number.
func (m *MockTracker) CreateIssue(_ context.Context, title, _ string) (*domain.Task, error) {
	if m.CreateIssueErr != nil {
		return nil, m.CreateIssueErr
	}
	t := &domain.Task{Title: title, Status: domain.StatusBacklog, Issue: m.NextIssue}
	m.NextIssue++
	m.Items = append(m.Items, t)
	return t, nil
}

// CloseIssue removes the issue from the items and records the comment.
func (m *MockTracker) CloseIssue(_ context.Context, issue int, comment string) error {
	if m.CloseErr != nil {
		return m.CloseErr
	}
	m.Closed[issue] = comment
	for i, t := range m.Items {
		if t.Issue == issue {
			m.Items = append(m.Items[:i], m.Items[i+1:]...)
			break
		}
	}
	return nil
}

// AddComment records the comment and attaches it to the issue.
func (m *MockTracker) AddComment(_ context.Context, issue int, body string) error {
	if m.AddCommentErr != nil {
		return m.AddCommentErr
	}
	m.NextCommentID++
	c := domain.Comment{Body: body, ID: m.NextCommentID, CreatedAt: time.Now()}
	m.Comments[issue] = append(m.Comments[issue], c)
	m.AddedComments = append(m.AddedComments, c)
	return nil
}

// ListComments returns the issue's comments.
func (m *MockTracker) ListComments(_ context.Context, issue int) ([]domain.Comment, error) {
	if m.ListCommentsErr != nil {
		return nil, m.ListCommentsErr
	}
	return m.Comments[issue], nil
}

// AddLabel attaches the label to the matching item.
func (m *MockTracker) AddLabel(_ context.Context, issue int, label string) error {
	if m.AddLabelErr != nil {
		return m.AddLabelErr
	}
	t := m.find(issue)
	if t == nil {
		return domain.ErrIssueNotFound
	}
	if !t.HasLabel(label) {
		t.Labels = append(t.Labels, label)
	}
	return nil
}

// RemoveLabel detaches the label from the matching item.
func (m *MockTracker) RemoveLabel(_ context.Context, issue int, label string) error {
	if m.RemoveLabelErr != nil {
		return m.RemoveLabelErr
	}
	t := m.find(issue)
	if t == nil {
		return domain.ErrIssueNotFound
	}
	for i, l := range t.Labels {
		if l == label {
			t.Labels = append(t.Labels[:i], t.Labels[i+1:]...)
			break
		}
	}
	return nil
}

// SetItemStatus records the call and moves the matching item.
func (m *MockTracker) SetItemStatus(_ context.Context, issue int, status domain.Status) error {
	if m.SetStatusErr != nil {
		return m.SetStatusErr
	}
	m.StatusChanges = append(m.StatusChanges, StatusChange{Status: status, Issue: issue})
	if t := m.find(issue); t != nil {
		t.Status = status
	}
	return nil
}

// FindPRByBranch returns the configured PR for the branch.
func (m *MockTracker) FindPRByBranch(_ context.Context, head string) (*domain.PullRequest, error) {
	if m.FindPRErr != nil {
		return nil, m.FindPRErr
	}
	pr, ok := m.PRsByBranch[head]
	if !ok {
		return nil, domain.ErrPRNotFound
	}
	return pr, nil
}

// CreatePR registers a new pull request with the next PR number.
func (m *MockTracker) CreatePR(_ context.Context, opts domain.CreatePROptions) (*domain.PullRequest, error) {
	if m.CreatePRErr != nil {
		return nil, m.CreatePRErr
	}
	pr := &domain.PullRequest{
		Title:      opts.Title,
		HeadBranch: opts.Head,
		BaseBranch: opts.Base,
		State:      "open",
		Number:     m.NextPR,
	}
	m.NextPR++
	m.PRs[pr.Number] = pr
	m.PRsByBranch[pr.HeadBranch] = pr
	return pr, nil
}

// GetPR returns the registered pull request.
func (m *MockTracker) GetPR(_ context.Context, number int) (*domain.PullRequest, error) {
	if m.GetPRErr != nil {
		return nil, m.GetPRErr
	}
	pr, ok := m.PRs[number]
	if !ok {
		return nil, domain.ErrPRNotFound
	}
	return pr, nil
}

// MergePR records the merge and marks the PR merged.
func (m *MockTracker) MergePR(_ context.Context, number int, _ string) error {
	if m.MergeErr != nil {
		return m.MergeErr
	}
	m.MergedPRs = append(m.MergedPRs, number)
	if pr, ok := m.PRs[number]; ok {
		pr.State = "merged"
	}
	return nil
}

// SubmitReview records the review.
func (m *MockTracker) SubmitReview(_ context.Context, pr int, approved bool, body string) error {
	if m.ReviewErr != nil {
		return m.ReviewErr
	}
	m.Reviews = append(m.Reviews, SubmittedReview{Body: body, PR: pr, Approved: approved})
	return nil
}

// DeleteBranch records the deleted branch.
func (m *MockTracker) DeleteBranch(_ context.Context, branch string) error {
	if m.DeleteBranchErr != nil {
		return m.DeleteBranchErr
	}
	m.DeletedBranches = append(m.DeletedBranches, branch)
	return nil
}

// CombinedChecks returns the configured state for the ref, passing when
// none was configured.
func (m *MockTracker) CombinedChecks(_ context.Context, ref string) (domain.ChecksState, error) {
	if m.ChecksErr != nil {
		return "", m.ChecksErr
	}
	if s, ok := m.Checks[ref]; ok {
		return s, nil
	}
	return domain.ChecksPassing, nil
}

// RateLimitRemaining returns the configured budget.
func (m *MockTracker) RateLimitRemaining() int {
	return m.RateLimit
}

func (m *MockTracker) find(issue int) *domain.Task {
	for _, t := range m.Items {
		if t.Issue == issue {
			return t
		}
	}
	return nil
}

// MockSessionBackend is a test double for domain.SessionBackend.
// Fields are ordered to minimize memory padding.
type MockSessionBackend struct {
	Sessions      map[string]*domain.Session
	Events        map[string][]domain.SessionEvent
	CreateErr     error
	GetErr        error
	GetEventsErr  error
	CreatedReqs   []domain.CreateSessionRequest
	NextSessionID int
}

// NewMockSessionBackend creates a new MockSessionBackend with initialized maps.
func NewMockSessionBackend() *MockSessionBackend {
	return &MockSessionBackend{
		Sessions:      make(map[string]*domain.Session),
		Events:        make(map[string][]domain.SessionEvent),
		NextSessionID: 1,
	}
}

// Ensure MockSessionBackend implements domain.SessionBackend interface.
var _ domain.SessionBackend = (*MockSessionBackend)(nil)

// CreateSession records the request and registers a running session.
func (m *MockSessionBackend) CreateSession(_ context.Context, req domain.CreateSessionRequest) (*domain.Session, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.CreatedReqs = append(m.CreatedReqs, req)
	n := strconv.Itoa(m.NextSessionID)
	s := &domain.Session{
		ID:     "sess-" + n,
		WebURL: "https://sessions.example/" + n,
		Status: domain.SessionRunning,
	}
	m.NextSessionID++
	m.Sessions[s.ID] = s
	return s, nil
}

// GetSession returns the registered session.
func (m *MockSessionBackend) GetSession(_ context.Context, id string) (*domain.Session, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.Sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// GetEvents returns the configured event stream.
func (m *MockSessionBackend) GetEvents(_ context.Context, id string) ([]domain.SessionEvent, error) {
	if m.GetEventsErr != nil {
		return nil, m.GetEventsErr
	}
	return m.Events[id], nil
}

// Finish marks a registered session completed with the given outcome.
func (m *MockSessionBackend) Finish(id string, status domain.SessionStatus, outcome *domain.SessionOutcome) {
	if s, ok := m.Sessions[id]; ok {
		s.Status = status
		s.Outcome = outcome
	}
}

// MockSourceControl is a test double for domain.SourceControl.
// Fields are ordered to minimize memory padding.
type MockSourceControl struct {
	HeadErr      error
	BranchErr    error
	ChangedErr   error
	Head         string
	Branch       string
	Changed      []string
	ChangedCalls int
}

// Ensure MockSourceControl implements domain.SourceControl interface.
var _ domain.SourceControl = (*MockSourceControl)(nil)

// HeadCommit returns the configured commit hash.
func (m *MockSourceControl) HeadCommit(_ string) (string, error) {
	if m.HeadErr != nil {
		return "", m.HeadErr
	}
	return m.Head, nil
}

// CurrentBranch returns the configured branch name.
func (m *MockSourceControl) CurrentBranch(_ string) (string, error) {
	if m.BranchErr != nil {
		return "", m.BranchErr
	}
	return m.Branch, nil
}

// ChangedFiles returns the configured file list.
func (m *MockSourceControl) ChangedFiles(_, _, _ string) ([]string, error) {
	m.ChangedCalls++
	if m.ChangedErr != nil {
		return nil, m.ChangedErr
	}
	return m.Changed, nil
}

// MockScanner is a test double for domain.WorkScanner.
// Fields are ordered to minimize memory padding.
type MockScanner struct {
	Analysis     *domain.RepoAnalysis
	FileResults  map[string]domain.FileAnalysis
	ScanErr      error
	ScanFilesErr error
	SignatureVal string
	ScannedPaths []string
	ScanCalled   bool
}

// NewMockScanner creates a new MockScanner with initialized maps.
func NewMockScanner() *MockScanner {
	return &MockScanner{FileResults: make(map[string]domain.FileAnalysis)}
}

// Ensure MockScanner implements domain.WorkScanner interface.
var _ domain.WorkScanner = (*MockScanner)(nil)

// Scan returns the configured analysis.
func (m *MockScanner) Scan(repoPath string, _ []string) (*domain.RepoAnalysis, error) {
	m.ScanCalled = true
	m.ScannedPaths = append(m.ScannedPaths, repoPath)
	if m.ScanErr != nil {
		return nil, m.ScanErr
	}
	return m.Analysis, nil
}

// Signature returns the configured signature value.
func (m *MockScanner) Signature() string {
	return m.SignatureVal
}

// ScanFiles returns the configured per-file results, mapping files without
// one to an empty analysis.
func (m *MockScanner) ScanFiles(_ string, files []string) (map[string]domain.FileAnalysis, error) {
	if m.ScanFilesErr != nil {
		return nil, m.ScanFilesErr
	}
	out := make(map[string]domain.FileAnalysis, len(files))
	for _, f := range files {
		out[f] = m.FileResults[f]
	}
	return out, nil
}

// MockReviewer is a test double for domain.CodeReviewer.
// Fields are ordered to minimize memory padding.
type MockReviewer struct {
	Result        *domain.ReviewResult
	ReviewErr     error
	Requests      []domain.ReviewRequest
	ConfiguredVal bool
}

// Ensure MockReviewer implements domain.CodeReviewer interface.
var _ domain.CodeReviewer = (*MockReviewer)(nil)

// Review records the request and returns the configured result.
func (m *MockReviewer) Review(_ context.Context, req domain.ReviewRequest) (*domain.ReviewResult, error) {
	m.Requests = append(m.Requests, req)
	if m.ReviewErr != nil {
		return nil, m.ReviewErr
	}
	return m.Result, nil
}

// Configured returns the configured flag.
func (m *MockReviewer) Configured() bool {
	return m.ConfiguredVal
}

// MockConfigLoader is a test double for domain.ConfigLoader.
// Fields are ordered to minimize memory padding.
type MockConfigLoader struct {
	Config  *domain.Config
	LoadErr error
}

// Ensure MockConfigLoader implements domain.ConfigLoader interface.
var _ domain.ConfigLoader = (*MockConfigLoader)(nil)

// Load returns the configured config.
func (m *MockConfigLoader) Load() (*domain.Config, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Config, nil
}

// MockCache is a test double for domain.AnalysisCache.
// Fields are ordered to minimize memory padding.
type MockCache struct {
	Lookup          domain.CacheLookup
	Stored          map[string]*domain.RepoAnalysis
	Merged          *domain.RepoAnalysis
	SetErr          error
	UpdateErr       error
	StatsVal        domain.CacheStats
	UpdatedFiles    []string
	InvalidatedRepo string
	GetCalled       bool
	UpdateCalled    bool
}

// NewMockCache creates a new MockCache with initialized maps.
func NewMockCache() *MockCache {
	return &MockCache{Stored: make(map[string]*domain.RepoAnalysis)}
}

// Ensure MockCache implements domain.AnalysisCache interface.
var _ domain.AnalysisCache = (*MockCache)(nil)

// Key derives a deterministic key from the inputs.
func (m *MockCache) Key(repoPath string, excludePaths []string, configHash string) string {
	key := repoPath + ":" + configHash
	for _, p := range excludePaths {
		key += ":" + p
	}
	return key
}

// Get returns the configured lookup.
func (m *MockCache) Get(_, _, _ string) domain.CacheLookup {
	m.GetCalled = true
	return m.Lookup
}

// Set stores the analysis under the key.
func (m *MockCache) Set(key, _ string, analysis *domain.RepoAnalysis, _ []string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Stored[key] = analysis
	return nil
}

// UpdateIncremental records the call and returns the configured merge.
func (m *MockCache) UpdateIncremental(_ string, changedFiles []string, _ map[string]domain.FileAnalysis) (*domain.RepoAnalysis, error) {
	m.UpdateCalled = true
	m.UpdatedFiles = append(m.UpdatedFiles, changedFiles...)
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	return m.Merged, nil
}

// Invalidate records the invalidated repository.
func (m *MockCache) Invalidate(repoPath string) {
	m.InvalidatedRepo = repoPath
}

// Stats returns the configured counters.
func (m *MockCache) Stats() domain.CacheStats {
	return m.StatsVal
}

// LogEntry records one logger call.
// Fields are ordered to minimize memory padding.
type LogEntry struct {
	Level string
	Stage string
	Msg   string
	Issue int
}

// MockLogger is a test double for domain.Logger that records every entry.
type MockLogger struct {
	Entries []LogEntry
}

// Ensure MockLogger implements domain.Logger interface.
var _ domain.Logger = (*MockLogger)(nil)

// Debug records a debug entry.
func (m *MockLogger) Debug(issue int, stage, msg string) { m.add("debug", issue, stage, msg) }

// Info records an info entry.
func (m *MockLogger) Info(issue int, stage, msg string) { m.add("info", issue, stage, msg) }

// Warn records a warn entry.
func (m *MockLogger) Warn(issue int, stage, msg string) { m.add("warn", issue, stage, msg) }

// Error records an error entry.
func (m *MockLogger) Error(issue int, stage, msg string) { m.add("error", issue, stage, msg) }

func (m *MockLogger) add(level string, issue int, stage, msg string) {
	m.Entries = append(m.Entries, LogEntry{Level: level, Stage: stage, Msg: msg, Issue: issue})
}

// Contains reports whether any recorded message contains the substring.
func (m *MockLogger) Contains(sub string) bool {
	for _, e := range m.Entries {
		if strings.Contains(e.Msg, sub) {
			return true
		}
	}
	return false
}

// MockConfigManager is a test double for domain.ConfigManager.
// Fields are ordered to minimize memory padding.
type MockConfigManager struct {
	InitRepoErr      error
	InitGlobalErr    error
	RepoConfigInfo   domain.ConfigInfo
	GlobalConfigInfo domain.ConfigInfo
	InitRepoCalled   bool
	InitGlobalCalled bool
}

// NewMockConfigManager creates a new MockConfigManager.
func NewMockConfigManager() *MockConfigManager {
	return &MockConfigManager{
		RepoConfigInfo: domain.ConfigInfo{
			Path:   "/test/.git/pilot/config.toml",
			Exists: false,
		},
		GlobalConfigInfo: domain.ConfigInfo{
			Path:   "/home/test/.config/git-pilot/config.toml",
			Exists: false,
		},
	}
}

// Ensure MockConfigManager implements domain.ConfigManager interface.
var _ domain.ConfigManager = (*MockConfigManager)(nil)

// GetRepoConfigInfo returns the configured repo config info.
func (m *MockConfigManager) GetRepoConfigInfo() domain.ConfigInfo {
	return m.RepoConfigInfo
}

// GetGlobalConfigInfo returns the configured global config info.
func (m *MockConfigManager) GetGlobalConfigInfo() domain.ConfigInfo {
	return m.GlobalConfigInfo
}

// InitRepoConfig records the call and returns the configured error.
func (m *MockConfigManager) InitRepoConfig() error {
	m.InitRepoCalled = true
	return m.InitRepoErr
}

// InitGlobalConfig records the call and returns the configured error.
func (m *MockConfigManager) InitGlobalConfig() error {
	m.InitGlobalCalled = true
	return m.InitGlobalErr
}

// MockHealthSource is a test double for domain.HealthSource.
type MockHealthSource struct {
	Services []domain.ServiceHealth
}

// Ensure MockHealthSource implements domain.HealthSource interface.
var _ domain.HealthSource = (*MockHealthSource)(nil)

// Health returns the configured snapshots.
func (m *MockHealthSource) Health() []domain.ServiceHealth {
	return m.Services
}
