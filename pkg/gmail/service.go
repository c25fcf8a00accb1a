package gmail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrHistoryExpired is returned by ListHistory when the stored start history
// id is no longer known to Gmail. The caller must re-establish the watch
// rather than retry the same fetch.
var ErrHistoryExpired = errors.New("gmail: start history id expired")

// TokenUpdateFunc is a callback invoked when the OAuth token is refreshed,
// so callers can persist a rotated refresh token.
type TokenUpdateFunc func(token *oauth2.Token) error

var oauthScopes = []string{gmail.GmailReadonlyScope}

type Service struct {
	clientID     string
	clientSecret string
	redirectURI  string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.RefreshToken != t.RefreshToken && t.RefreshToken != "" {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret, redirectURI string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
	}
}

func (s *Service) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		RedirectURL:  s.redirectURI,
		Scopes:       oauthScopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthCodeURL builds the consent URL for connecting a mailbox. Offline access
// plus forced consent so Google returns a refresh token.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauthConfig().AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for tokens.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.oauthConfig().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange authorization code: %v", err)
	}
	return token, nil
}

// getGmailService creates a Gmail API client backed by the user's refresh token
func (s *Service) getGmailService(ctx context.Context, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Now(), // force refresh, we only store the refresh token
	}

	tokenSource := s.oauthConfig().TokenSource(ctx, token)

	// Wrap token source to detect refresh-token rotation
	wrappedSource := &notifyTokenSource{
		src:      tokenSource,
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %v", err)
	}

	return srv, nil
}

// GetProfile returns the mailbox address for the authorized account.
func (s *Service) GetProfile(ctx context.Context, refreshToken string, onTokenRefresh TokenUpdateFunc) (string, error) {
	srv, err := s.getGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return "", err
	}

	profile, err := srv.Users.GetProfile("me").Do()
	if err != nil {
		return "", fmt.Errorf("unable to retrieve profile: %v", err)
	}

	return profile.EmailAddress, nil
}

// Watch registers push notifications for the user's inbox and returns the
// baseline history id and the provider-side expiry. When stopExisting is set
// any previous watch is stopped first to avoid a leaked duplicate
// registration with the provider.
func (s *Service) Watch(ctx context.Context, refreshToken, topicName string, stopExisting bool, onTokenRefresh TokenUpdateFunc) (historyID string, expiry time.Time, err error) {
	srv, err := s.getGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	if stopExisting {
		// Ignore errors: there may be no watch to stop.
		log.Printf("[Gmail] Stopping existing watch before re-registering")
		_ = srv.Users.Stop("me").Do()
	}

	req := &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}

	resp, err := srv.Users.Watch("me", req).Do()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("unable to watch mailbox: %v", err)
	}
	if resp.HistoryId == 0 || resp.Expiration == 0 {
		return "", time.Time{}, fmt.Errorf("gmail watch response missing history id or expiration")
	}

	expiry = time.UnixMilli(resp.Expiration)
	historyID = strconv.FormatUint(resp.HistoryId, 10)
	log.Printf("[Gmail] Watch started. HistoryId: %s, Expiration: %s", historyID, expiry.Format(time.RFC3339))

	return historyID, expiry, nil
}

// Stop stops push notifications for the user's mailbox.
func (s *Service) Stop(ctx context.Context, refreshToken string, onTokenRefresh TokenUpdateFunc) error {
	srv, err := s.getGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return err
	}

	if err := srv.Users.Stop("me").Do(); err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %v", err)
	}

	return nil
}

// ListHistory retrieves the ids of messages added after startHistoryID,
// following pagination, and the new watermark. The new watermark is returned
// even when no messages were added; callers must persist it unconditionally.
// An expired start id yields ErrHistoryExpired.
func (s *Service) ListHistory(ctx context.Context, refreshToken, startHistoryID string, onTokenRefresh TokenUpdateFunc) (string, []string, error) {
	srv, err := s.getGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return "", nil, err
	}

	startID, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("invalid start history id %q: %v", startHistoryID, err)
	}

	var (
		newHistoryID uint64
		messageIDs   []string
		seen         = make(map[string]bool)
		pageToken    string
	)

	for {
		call := srv.Users.History.List("me").
			StartHistoryId(startID).
			HistoryTypes("messageAdded")
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			var apiErr *googleapi.Error
			// Gmail answers 404 when the start history id is too old
			if errors.As(err, &apiErr) && apiErr.Code == 404 {
				return "", nil, ErrHistoryExpired
			}
			return "", nil, fmt.Errorf("unable to list history: %v", err)
		}

		if resp.HistoryId > newHistoryID {
			newHistoryID = resp.HistoryId
		}

		for _, record := range resp.History {
			for _, added := range record.MessagesAdded {
				if added.Message == nil || added.Message.Id == "" {
					continue
				}
				if !seen[added.Message.Id] {
					seen[added.Message.Id] = true
					messageIDs = append(messageIDs, added.Message.Id)
				}
			}
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	if newHistoryID == 0 {
		// No records since the start id; the watermark stays where it was.
		newHistoryID = startID
	}

	return strconv.FormatUint(newHistoryID, 10), messageIDs, nil
}

// GetMessage retrieves a full message by id.
func (s *Service) GetMessage(ctx context.Context, refreshToken, messageID string, onTokenRefresh TokenUpdateFunc) (*gmail.Message, error) {
	srv, err := s.getGmailService(ctx, refreshToken, onTokenRefresh)
	if err != nil {
		return nil, err
	}

	msg, err := srv.Users.Messages.Get("me", messageID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve message: %v", err)
	}

	return msg, nil
}
