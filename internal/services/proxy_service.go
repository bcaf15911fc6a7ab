package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Wikid82/proxybot/internal/ledger"
	"github.com/Wikid82/proxybot/internal/logger"
	"github.com/Wikid82/proxybot/internal/metrics"
	"github.com/Wikid82/proxybot/internal/npm"
	"github.com/Wikid82/proxybot/internal/util"
)

const (
	// DefaultListCheckLimit is how many ledger entries List checks remotely.
	DefaultListCheckLimit = 15
	defaultListWorkers    = 5
)

var (
	// ErrNoProxies means the user owns nothing at all.
	ErrNoProxies = fmt.Errorf("%w: no proxies created", ErrNotOwned)
	// ErrGone means the user's entry pointed at a proxy the control-plane no
	// longer has. The entry has been pruned.
	ErrGone = fmt.Errorf("%w: proxy is no longer active and was removed from your records", npm.ErrNotFound)
)

// Directory is the control-plane surface the lifecycle operations need.
type Directory interface {
	FindByDomain(ctx context.Context, domain string) (*npm.ProxyHost, error)
	Create(ctx context.Context, req npm.ProxyHostRequest) (*npm.ProxyHost, error)
	Update(ctx context.Context, id int, req npm.ProxyHostRequest) (*npm.ProxyHost, error)
	Delete(ctx context.Context, id int) error
}

// Resolver answers the DNS precondition for create.
type Resolver interface {
	ResolveIPv4(ctx context.Context, domain string) string
}

// ProxyServiceConfig carries the operator settings the service needs.
type ProxyServiceConfig struct {
	// ServerIP is the reverse proxy's public IPv4 address. Domains must
	// resolve to it before a proxy is created.
	ServerIP         string
	LetsEncryptEmail string
	ListCheckLimit   int
}

// ProxyService orchestrates proxy lifecycle operations across DNS, the
// control-plane and the ownership ledger.
type ProxyService struct {
	dir      Directory
	resolver Resolver
	ledger   *ledger.Ledger
	notifier Notifier
	cfg      ProxyServiceConfig
	now      func() time.Time
}

func NewProxyService(dir Directory, resolver Resolver, l *ledger.Ledger, notifier Notifier, cfg ProxyServiceConfig) *ProxyService {
	if cfg.ListCheckLimit <= 0 {
		cfg.ListCheckLimit = DefaultListCheckLimit
	}
	if notifier == nil {
		notifier = (*NotificationService)(nil)
	}
	return &ProxyService{
		dir:      dir,
		resolver: resolver,
		ledger:   l,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ServerIP returns the address domains must resolve to.
func (s *ProxyService) ServerIP() string { return s.cfg.ServerIP }

// CreateResult is a successfully created proxy and its ledger entry.
type CreateResult struct {
	Host  *npm.ProxyHost
	Entry ledger.Entry
}

// Create validates input, checks DNS, refuses domains the control-plane
// already serves, creates the proxy and records it for userID. A stale
// entry the user still holds for the domain is pruned first.
//
// When the remote create succeeds but the ledger write fails the result is
// returned together with a *LedgerWriteError.
func (s *ProxyService) Create(ctx context.Context, userID, domain, ip string, port int) (result *CreateResult, err error) {
	defer func() { metrics.IncLifecycle("create", resultLabel(err)) }()

	domain = NormalizeDomain(domain)
	if err := ValidateDomain(domain); err != nil {
		return nil, err
	}
	if err := ValidateIPv4(ip); err != nil {
		return nil, err
	}
	if err := ValidatePort(port); err != nil {
		return nil, err
	}

	observed := s.resolver.ResolveIPv4(ctx, domain)
	if observed == "" || observed != s.cfg.ServerIP {
		return nil, &DNSMismatchError{Domain: domain, Observed: observed, Required: s.cfg.ServerIP}
	}

	existing, err := s.dir.FindByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", domain, err)
	}
	if existing != nil {
		return nil, npm.ErrConflict
	}

	unlock := s.ledger.Lock(userID)
	defer unlock()

	if _, stale, err := s.ledger.Find(ctx, userID, domain); err != nil {
		return nil, err
	} else if stale {
		if _, err := s.prune(ctx, userID, domain); err != nil {
			return nil, err
		}
	}

	host, err := s.dir.Create(ctx, npm.NewProxyHostRequest(domain, ip, port, s.cfg.LetsEncryptEmail))
	if err != nil {
		return nil, err
	}

	entry := ledger.Entry{
		ID:         host.ID,
		Domain:     domain,
		TargetIP:   ip,
		TargetPort: port,
		CreatedAt:  s.now().UTC(),
	}
	result = &CreateResult{Host: host, Entry: entry}

	log := logger.WithFields(logrus.Fields{"user_id": userID, "domain": util.SanitizeForLog(domain), "proxy_id": host.ID})
	if err := s.ledger.Append(ctx, userID, entry); err != nil {
		log.WithError(err).Error("Proxy created but ledger write failed")
		s.notifier.SendExternal(EventLedgerDegraded, "Ledger write failed",
			fmt.Sprintf("Proxy %s (id %d) was created for user %s but is not recorded locally: %v", domain, host.ID, userID, err))
		return result, &LedgerWriteError{Domain: domain, Err: err}
	}

	log.Info("Proxy created")
	s.notifier.SendExternal(EventProxyCreated, "Proxy created",
		fmt.Sprintf("%s -> %s:%d (id %d) by user %s", domain, ip, port, host.ID, userID))
	return result, nil
}

// ownedHost resolves the user's entry and the live remote record. The caller
// must hold the user's lock. An orphaned entry is pruned and ErrGone returned.
func (s *ProxyService) ownedHost(ctx context.Context, userID, domain string) (ledger.Entry, *npm.ProxyHost, error) {
	entry, err := s.ownedEntry(ctx, userID, domain)
	if err != nil {
		return ledger.Entry{}, nil, err
	}

	host, err := s.dir.FindByDomain(ctx, domain)
	if err != nil {
		return entry, nil, fmt.Errorf("lookup %s: %w", domain, err)
	}
	if host == nil {
		_, _ = s.prune(ctx, userID, domain)
		return entry, nil, ErrGone
	}
	return entry, host, nil
}

// ownedEntry returns the user's entry for domain, ErrNoProxies when the user
// has none at all and ErrNotOwned otherwise.
func (s *ProxyService) ownedEntry(ctx context.Context, userID, domain string) (ledger.Entry, error) {
	entry, ok, err := s.ledger.Find(ctx, userID, domain)
	if err != nil {
		return ledger.Entry{}, err
	}
	if ok {
		return entry, nil
	}
	entries, err := s.ledger.Entries(ctx, userID)
	if err != nil {
		return ledger.Entry{}, err
	}
	if len(entries) == 0 {
		return ledger.Entry{}, ErrNoProxies
	}
	return ledger.Entry{}, ErrNotOwned
}

// prune drops the user's entry for a domain the control-plane no longer
// serves. The caller must hold the user's lock.
func (s *ProxyService) prune(ctx context.Context, userID, domain string) (bool, error) {
	log := logger.WithFields(logrus.Fields{"user_id": userID, "domain": util.SanitizeForLog(domain)})
	removed, err := s.ledger.Remove(ctx, userID, domain)
	if err != nil {
		log.WithError(err).Warn("Failed to prune ledger entry")
		return false, err
	}
	if removed {
		metrics.AddLedgerPruned(1)
		log.Info("Pruned ledger entry for missing proxy")
		s.notifier.SendExternal(EventLedgerPruned, "Ledger entry pruned",
			fmt.Sprintf("%s no longer exists on the control-plane and was removed from user %s", domain, userID))
	}
	return removed, nil
}

// UpdateCustomConfig replaces the proxy's advanced configuration. An empty
// text clears it. Every other field is resent unchanged.
func (s *ProxyService) UpdateCustomConfig(ctx context.Context, userID, domain, text string) (host *npm.ProxyHost, err error) {
	defer func() { metrics.IncLifecycle("update_config", resultLabel(err)) }()

	domain = NormalizeDomain(domain)
	if err := ValidateAdvancedConfig(text); err != nil {
		return nil, err
	}

	unlock := s.ledger.Lock(userID)
	defer unlock()

	_, current, err := s.ownedHost(ctx, userID, domain)
	if err != nil {
		return nil, err
	}
	return s.dir.Update(ctx, current.ID, npm.MergeUpdate(*current, npm.Patch{AdvancedConfig: &text}))
}

// CurrentConfig returns the live proxy record for a domain the user owns.
func (s *ProxyService) CurrentConfig(ctx context.Context, userID, domain string) (*npm.ProxyHost, error) {
	domain = NormalizeDomain(domain)

	unlock := s.ledger.Lock(userID)
	defer unlock()

	_, host, err := s.ownedHost(ctx, userID, domain)
	return host, err
}

// ToggleResult reports the SSL forcing state before and after a toggle.
type ToggleResult struct {
	Host     *npm.ProxyHost
	Previous bool
	Current  bool
}

// ToggleSSL inverts ssl_forced. Calling it twice restores the original state.
func (s *ProxyService) ToggleSSL(ctx context.Context, userID, domain string) (result *ToggleResult, err error) {
	defer func() { metrics.IncLifecycle("toggle_ssl", resultLabel(err)) }()

	domain = NormalizeDomain(domain)

	unlock := s.ledger.Lock(userID)
	defer unlock()

	_, current, err := s.ownedHost(ctx, userID, domain)
	if err != nil {
		return nil, err
	}
	next := !current.SSLForced
	updated, err := s.dir.Update(ctx, current.ID, npm.MergeUpdate(*current, npm.Patch{SSLForced: &next}))
	if err != nil {
		return nil, err
	}
	return &ToggleResult{Host: updated, Previous: current.SSLForced, Current: updated.SSLForced}, nil
}

// DeleteOutcome describes a successful delete. AlreadyGone means the
// control-plane had no record and only the ledger entry was pruned.
type DeleteOutcome struct {
	Entry       ledger.Entry
	AlreadyGone bool
}

// Delete removes a proxy the user owns. Ownership is the ledger's word only.
// The ledger entry is kept when the remote delete fails.
func (s *ProxyService) Delete(ctx context.Context, userID, domain string) (outcome *DeleteOutcome, err error) {
	defer func() { metrics.IncLifecycle("delete", resultLabel(err)) }()

	domain = NormalizeDomain(domain)

	unlock := s.ledger.Lock(userID)
	defer unlock()

	entry, err := s.ownedEntry(ctx, userID, domain)
	if err != nil {
		return nil, err
	}

	host, err := s.dir.FindByDomain(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", domain, err)
	}
	if host == nil {
		if _, err := s.prune(ctx, userID, domain); err != nil {
			return nil, err
		}
		return &DeleteOutcome{Entry: entry, AlreadyGone: true}, nil
	}

	if err := s.dir.Delete(ctx, host.ID); err != nil {
		return nil, err
	}
	if _, err := s.ledger.Remove(ctx, userID, domain); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{"user_id": userID, "domain": util.SanitizeForLog(domain), "proxy_id": host.ID}).Info("Proxy deleted")
	s.notifier.SendExternal(EventProxyDeleted, "Proxy deleted",
		fmt.Sprintf("%s (id %d) deleted by user %s", domain, host.ID, userID))
	return &DeleteOutcome{Entry: entry}, nil
}

// ProxyInfo is a ledger entry joined with its live remote record. Host is
// nil when the proxy is no longer active.
type ProxyInfo struct {
	Entry  ledger.Entry
	Host   *npm.ProxyHost
	Active bool
}

// Info reports one owned proxy. An orphaned entry is reported inactive and
// pruned.
func (s *ProxyService) Info(ctx context.Context, userID, domain string) (*ProxyInfo, error) {
	domain = NormalizeDomain(domain)

	unlock := s.ledger.Lock(userID)
	defer unlock()

	entry, host, err := s.ownedHost(ctx, userID, domain)
	if errors.Is(err, ErrGone) {
		return &ProxyInfo{Entry: entry}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ProxyInfo{Entry: entry, Host: host, Active: true}, nil
}

// ProxyStatus is one checked entry of a listing.
type ProxyStatus struct {
	Entry  ledger.Entry
	Active bool
}

// ProxyList summarises a user's proxies. Counts cover Checked only;
// Remaining entries were not looked up.
type ProxyList struct {
	Checked   []ProxyStatus
	Active    int
	Inactive  int
	Total     int
	Remaining int
}

// List checks the first entries of the user's ledger concurrently. A lookup
// failure counts as inactive. List never prunes.
func (s *ProxyService) List(ctx context.Context, userID string) (*ProxyList, error) {
	entries, err := s.ledger.Entries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoProxies
	}

	checked := entries
	if len(checked) > s.cfg.ListCheckLimit {
		checked = checked[:s.cfg.ListCheckLimit]
	}
	statuses := make([]ProxyStatus, len(checked))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultListWorkers)
	for i, e := range checked {
		g.Go(func() error {
			host, err := s.dir.FindByDomain(gctx, e.Domain)
			statuses[i] = ProxyStatus{Entry: e, Active: err == nil && host != nil}
			return nil
		})
	}
	_ = g.Wait()

	out := &ProxyList{Checked: statuses, Total: len(entries), Remaining: len(entries) - len(checked)}
	for _, st := range statuses {
		if st.Active {
			out.Active++
		} else {
			out.Inactive++
		}
	}
	return out, nil
}

func resultLabel(err error) string {
	var lwe *LedgerWriteError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &lwe):
		return "degraded"
	default:
		return "error"
	}
}
