package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/endurain/backend/internal/common"
	"github.com/endurain/backend/internal/entity"
	"github.com/endurain/backend/internal/model"
	"github.com/endurain/backend/internal/repository"
	"github.com/endurain/backend/pkg/api"
	"github.com/endurain/backend/pkg/api/polar"
	"github.com/endurain/backend/pkg/errorx"
	"github.com/endurain/backend/pkg/pubsub"
	"github.com/endurain/backend/pkg/storage"
	"github.com/endurain/backend/pkg/xcontext"
	"github.com/endurain/backend/pkg/xredis"
	"github.com/puzpuzpuz/xsync"
)

const (
	// stateExpiration bounds how long a handed-out OAuth2 state stays
	// redeemable.
	stateExpiration = 30 * time.Minute

	// exerciseMarkerExpiration is the TTL of the redis fast-path marker for
	// already imported exercises. The unique database index is the backstop.
	exerciseMarkerExpiration = 24 * time.Hour

	webhookEventPing     = "PING"
	webhookEventExercise = "EXERCISE"

	defaultTokenScope = "accesslink.read_all"
)

type PolarDomain interface {
	SetClient(ctx context.Context, req *model.PolarSetClientRequest) (*model.PolarSetClientResponse, error)
	SetState(ctx context.Context, req *model.PolarSetStateRequest) (*model.PolarSetStateResponse, error)
	Link(ctx context.Context, req *model.PolarLinkRequest) (*model.PolarLinkResponse, error)
	Unlink(ctx context.Context, req *model.PolarUnlinkRequest) (*model.PolarUnlinkResponse, error)
	Webhook(ctx context.Context, req *model.PolarWebhookRequest) (*model.PolarWebhookResponse, error)
	ProcessExerciseNotification(ctx context.Context, notification *model.ExerciseNotification) error
}

type polarDomain struct {
	userRepo         repository.UserRepository
	polarAccountRepo repository.PolarAccountRepository
	activityRepo     repository.ActivityRepository
	polarEndpoint    polar.IEndpoint
	publisher        pubsub.Publisher
	redisClient      xredis.Client
	storage          storage.Storage
	importer         ActivityImporter

	processing *xsync.MapOf[string, bool]
}

func NewPolarDomain(
	userRepo repository.UserRepository,
	polarAccountRepo repository.PolarAccountRepository,
	activityRepo repository.ActivityRepository,
	polarEndpoint polar.IEndpoint,
	publisher pubsub.Publisher,
	redisClient xredis.Client,
	storage storage.Storage,
	importer ActivityImporter,
) *polarDomain {
	return &polarDomain{
		userRepo:         userRepo,
		polarAccountRepo: polarAccountRepo,
		activityRepo:     activityRepo,
		polarEndpoint:    polarEndpoint,
		publisher:        publisher,
		redisClient:      redisClient,
		storage:          storage,
		importer:         importer,
		processing:       xsync.NewMapOf[bool](),
	}
}

func (d *polarDomain) SetClient(
	ctx context.Context, req *model.PolarSetClientRequest,
) (*model.PolarSetClientResponse, error) {
	userID := xcontext.RequestUserID(ctx)
	user, err := d.userRepo.GetByID(ctx, userID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get user: %v", err)
		return nil, errorx.Unknown
	}

	if user == nil {
		return nil, errorx.New(errorx.NotFound, "User not found")
	}

	if err := d.polarAccountRepo.SetClientCredentials(
		ctx, userID, req.ClientID, req.ClientSecret,
	); err != nil {
		var errx errorx.Error
		if errors.As(err, &errx) {
			return nil, err
		}

		xcontext.Logger(ctx).Errorf("Cannot save polar client credentials: %v", err)
		return nil, errorx.New(errorx.Unknown.Code, "Unable to store Polar client credentials")
	}

	return &model.PolarSetClientResponse{}, nil
}

func (d *polarDomain) SetState(
	ctx context.Context, req *model.PolarSetStateRequest,
) (*model.PolarSetStateResponse, error) {
	userID := xcontext.RequestUserID(ctx)
	if err := d.polarAccountRepo.SetState(ctx, userID, req.State); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot set polar state: %v", err)
		return nil, errorx.Unknown
	}

	return &model.PolarSetStateResponse{}, nil
}

// Link redeems the OAuth2 state and authorization code for an access token,
// then registers the user with AccessLink. Any failure after the state has
// matched rolls the account back to the unlinked baseline.
func (d *polarDomain) Link(
	ctx context.Context, req *model.PolarLinkRequest,
) (*model.PolarLinkResponse, error) {
	if req.State == "" || req.Code == "" {
		return nil, errorx.New(errorx.BadRequest, "Both state and code are required")
	}

	account, err := d.polarAccountRepo.GetByState(ctx, req.State)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get polar account by state: %v", err)
		return nil, errorx.Unknown
	}

	if account == nil {
		return nil, errorx.New(errorx.NotFound, "Polar state not found")
	}

	if account.StateIssuedAt.Valid && time.Since(account.StateIssuedAt.Time) > stateExpiration {
		if err := d.polarAccountRepo.SetState(ctx, account.UserID, ""); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot clear expired polar state: %v", err)
		}

		return nil, errorx.New(errorx.NotFound, "Polar state not found")
	}

	if err := d.completeLink(ctx, account, req.Code); err != nil {
		if rerr := d.polarAccountRepo.Unlink(ctx, account.UserID); rerr != nil {
			xcontext.Logger(ctx).Errorf("Cannot rollback polar link of user %s: %v",
				account.UserID, rerr)
		}

		return nil, err
	}

	return &model.PolarLinkResponse{UserID: account.UserID}, nil
}

func (d *polarDomain) completeLink(
	ctx context.Context, account *entity.PolarAccount, code string,
) error {
	if xcontext.Configs(ctx).Polar.Host == "" {
		xcontext.Logger(ctx).Errorf("Polar redirect host is not configured")
		return errorx.New(errorx.Internal, "Server host is not configured")
	}

	clientID, clientSecret, err := d.polarAccountRepo.DecryptClientCredentials(account)
	if err != nil {
		var errx errorx.Error
		if errors.As(err, &errx) {
			return err
		}

		xcontext.Logger(ctx).Errorf("Cannot decrypt polar client credentials: %v", err)
		return errorx.Unknown
	}

	polarCfg := xcontext.Configs(ctx).Polar
	redirectURI := polarCfg.RedirectURI()
	tokens, err := d.polarEndpoint.ExchangeCodeForToken(ctx, clientID, clientSecret, code, redirectURI)
	if err != nil {
		return err
	}

	scope := tokens.Scope
	if scope == "" {
		scope = defaultTokenScope
	}

	if err := d.polarAccountRepo.StoreTokenPayload(ctx, account, tokens, scope); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot store polar token payload: %v", err)
		return errorx.New(errorx.Unknown.Code, "Unable to store Polar token information")
	}

	accessToken, err := d.polarAccountRepo.DecryptAccessToken(account)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot decrypt polar access token: %v", err)
		return errorx.Unknown
	}

	memberID := fmt.Sprintf("endurain-%s", account.UserID)
	registration, err := d.polarEndpoint.RegisterUser(ctx, accessToken, memberID)
	if err != nil {
		return err
	}

	if err := d.polarAccountRepo.StoreRegistrationDetails(ctx, account, registration); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot store polar registration details: %v", err)
		return errorx.New(errorx.Unknown.Code, "Unable to store Polar registration data")
	}

	return nil
}

// Unlink notifies AccessLink on a best-effort basis, then removes imported
// Polar activities and resets the account in one transaction.
func (d *polarDomain) Unlink(
	ctx context.Context, req *model.PolarUnlinkRequest,
) (*model.PolarUnlinkResponse, error) {
	userID := xcontext.RequestUserID(ctx)
	account, err := d.polarAccountRepo.GetByUserID(ctx, userID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get polar account: %v", err)
		return nil, errorx.Unknown
	}

	if account == nil {
		return nil, errorx.New(errorx.NotFound, "Polar account not found")
	}

	accessToken, err := d.polarAccountRepo.DecryptAccessToken(account)
	if err != nil {
		xcontext.Logger(ctx).Warnf("Unable to notify Polar while unlinking user %s: %v", userID, err)
	} else if err := d.polarEndpoint.DeregisterUser(ctx, accessToken, account.PolarUserID.Int64); err != nil {
		xcontext.Logger(ctx).Warnf("Unable to notify Polar while unlinking user %s: %v", userID, err)
	}

	ctx = xcontext.WithDBTransaction(ctx)
	defer xcontext.WithRollbackDBTransaction(ctx)

	if err := d.activityRepo.DeleteAllPolarByUserID(ctx, userID); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot delete polar activities: %v", err)
		return nil, errorx.New(errorx.Unknown.Code, "Unable to unlink Polar account")
	}

	if err := d.polarAccountRepo.Unlink(ctx, userID); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot unlink polar account: %v", err)
		return nil, errorx.New(errorx.Unknown.Code, "Unable to unlink Polar account")
	}

	xcontext.WithCommitDBTransaction(ctx)
	return &model.PolarUnlinkResponse{}, nil
}

// Webhook acknowledges AccessLink notifications. EXERCISE events are handed
// to the subscriber through the publisher, the response never waits for the
// import itself.
func (d *polarDomain) Webhook(
	ctx context.Context, req *model.PolarWebhookRequest,
) (*model.PolarWebhookResponse, error) {
	if !d.polarEndpoint.VerifyWebhookSignature(ctx, req.Signature, req.RawBody) {
		return nil, errorx.New(errorx.Unauthenticated, "Invalid signature")
	}

	var payload model.PolarWebhookPayload
	if err := json.Unmarshal(req.RawBody, &payload); err != nil {
		return nil, errorx.New(errorx.BadRequest, "Invalid JSON payload: %v", err)
	}

	event := req.Event
	if event == "" {
		event = payload.Event
	}

	if event == webhookEventPing {
		return &model.PolarWebhookResponse{Detail: "pong"}, nil
	}

	if event != webhookEventExercise {
		xcontext.Logger(ctx).Infof("Received unsupported polar webhook event %s", event)
		return &model.PolarWebhookResponse{Detail: "ignored"}, nil
	}

	if payload.UserID == nil || payload.EntityID == nil {
		return nil, errorx.New(errorx.BadRequest,
			"Missing user_id or entity_id in Polar webhook payload")
	}

	notification := model.ExerciseNotification{
		PolarUserID: *payload.UserID,
		ExerciseID:  *payload.EntityID,
		URL:         payload.URL,
	}

	msg, err := json.Marshal(notification)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot marshal exercise notification: %v", err)
		return nil, errorx.Unknown
	}

	pack := &pubsub.Pack{Key: []byte(notification.ExerciseID), Msg: msg}
	if err := d.publisher.Publish(ctx, common.PolarExerciseTopic, pack); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot publish exercise notification: %v", err)
		return nil, errorx.Unknown
	}

	return &model.PolarWebhookResponse{Detail: "accepted"}, nil
}

// ProcessExerciseNotification downloads and imports one exercise. It is safe
// to call with duplicated notifications, replays are detected before any
// remote call is made.
func (d *polarDomain) ProcessExerciseNotification(
	ctx context.Context, notification *model.ExerciseNotification,
) error {
	inflightKey := fmt.Sprintf("%d:%s", notification.PolarUserID, notification.ExerciseID)
	if _, loaded := d.processing.LoadOrStore(inflightKey, true); loaded {
		xcontext.Logger(ctx).Infof("Polar exercise %s is already in progress", notification.ExerciseID)
		return nil
	}
	defer d.processing.Delete(inflightKey)

	account, err := d.polarAccountRepo.GetByPolarUserID(ctx, notification.PolarUserID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get polar account by polar user id: %v", err)
		return d.processed("failure", errorx.Unknown)
	}

	if account == nil {
		xcontext.Logger(ctx).Warnf("Skipping polar webhook for unknown user_id %d",
			notification.PolarUserID)
		return d.processed("skipped", nil)
	}

	markerKey := fmt.Sprintf("polar:exercise:%s:%s", account.UserID, notification.ExerciseID)
	if existed, err := d.redisClient.Exist(ctx, markerKey); err != nil {
		xcontext.Logger(ctx).Debugf("Cannot check exercise marker: %v", err)
	} else if existed {
		xcontext.Logger(ctx).Infof("Polar exercise %s already stored for user %s",
			notification.ExerciseID, account.UserID)
		return d.processed("skipped", nil)
	}

	existing, err := d.activityRepo.GetByPolarExerciseID(ctx, account.UserID, notification.ExerciseID)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot check for existing activity: %v", err)
		return d.processed("failure", errorx.Unknown)
	}

	if existing != nil {
		xcontext.Logger(ctx).Infof("Polar exercise %s already stored for user %s",
			notification.ExerciseID, account.UserID)
		return d.processed("skipped", nil)
	}

	accessToken, err := d.polarAccountRepo.DecryptAccessToken(account)
	if err != nil {
		var errx errorx.Error
		if errors.As(err, &errx) {
			return d.processed("failure", err)
		}

		xcontext.Logger(ctx).Errorf("Cannot decrypt polar access token: %v", err)
		return d.processed("failure", errorx.Unknown)
	}

	var metadata api.JSON
	if notification.URL != "" {
		metadata, err = d.polarEndpoint.FetchMetadata(ctx, accessToken, notification.URL)
		if err != nil {
			xcontext.Logger(ctx).Warnf("Unable to fetch exercise metadata for %s: %v",
				notification.ExerciseID, err)
			metadata = nil
		}
	}

	gpx, err := d.polarEndpoint.DownloadExercise(ctx, accessToken, notification.ExerciseID)
	if err != nil {
		return d.processed("failure", err)
	}

	fileName := fmt.Sprintf("polar_%s_%s_%s.gpx",
		account.UserID, notification.ExerciseID, time.Now().UTC().Format("20060102150405"))
	uploaded, err := d.storage.Upload(ctx, &storage.UploadObject{
		Bucket:   xcontext.Configs(ctx).Storage.Bucket,
		Prefix:   "polar",
		FileName: fileName,
		Mime:     "application/gpx+xml",
		Data:     gpx,
	})
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot store exercise file: %v", err)
		return d.processed("failure", errorx.New(errorx.Unknown.Code, "Failed to process Polar exercise"))
	}

	importInfo := entity.Map{
		"source":      "polar",
		"exercise_id": notification.ExerciseID,
	}
	if notification.URL != "" {
		importInfo["metadata_url"] = notification.URL
	}
	if metadata != nil {
		importInfo["metadata"] = metadata
	}

	if _, err := d.importer.Import(
		ctx, account.UserID, uploaded.Url, notification.ExerciseID, importInfo,
	); err != nil {
		xcontext.Logger(ctx).Errorf("Cannot import polar exercise %s: %v",
			notification.ExerciseID, err)
		return d.processed("failure", errorx.New(errorx.Unknown.Code, "Failed to process Polar exercise"))
	}

	if err := d.polarAccountRepo.SetLastNotification(ctx, account, time.Now()); err != nil {
		xcontext.Logger(ctx).Warnf("Cannot update last notification time: %v", err)
	}

	if err := d.redisClient.SetObj(ctx, markerKey, true, exerciseMarkerExpiration); err != nil {
		xcontext.Logger(ctx).Debugf("Cannot set exercise marker: %v", err)
	}

	xcontext.Logger(ctx).Infof("Stored polar exercise %s for user %s",
		notification.ExerciseID, account.UserID)
	return d.processed("success", nil)
}

func (d *polarDomain) processed(result string, err error) error {
	if counter, ok := common.PromCounters[common.PolarExerciseProcessed]; ok {
		counter.WithLabelValues(result).Inc()
	}

	return err
}
