package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	redisAdapter "ipo/adapters/redis"
	"ipo/adapters/rounddef"
	internalS3 "ipo/adapters/s3"
	"ipo/adapters/sse"
	"ipo/engine"
	"ipo/models"
)

// roundHost 是一場進行中回合的執行容器。
// 引擎本身是單執行緒的狀態機，所有提交經由 mu 序列化。
type roundHost struct {
	mu        sync.Mutex
	round     *engine.Round
	seatNames []string
	resultURL string
}

func (h *roundHost) seatName(seat int) string {
	if seat < 0 || seat >= len(h.seatNames) {
		return ""
	}
	return h.seatNames[seat]
}

type ServerImpl struct {
	sseManager    sse.IConnectionManager[RoundEvent]
	s3Operator    *internalS3.S3Operator
	htmlChecker   *bluemonday.Policy
	redisClient   *redis.Client
	consumer      redisAdapter.IConsumer[sse.PublishRequest[RoundEvent]]
	groupConsumer redisAdapter.IGroupConsumer[EventInfo]
	store         redisAdapter.IStore
	db            *gorm.DB

	roundsMu sync.RWMutex
	rounds   map[uuid.UUID]*roundHost

	wg         sync.WaitGroup
	cancelFunc context.CancelFunc

	config ServerConfig
}

func NewServer(config ServerConfig) (*ServerImpl, error) {
	const op = "NewServer"

	// 初始化S3客戶端
	s3Cfg, err := awsCfg.LoadDefaultConfig(
		context.Background(),
		awsCfg.WithBaseEndpoint(config.S3.Endpoint),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.S3.AccessKeyID, config.S3.SecretAccessKey, "")),
		awsCfg.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load AWS config, err=%w", op, err)
	}
	s3Operator, err := internalS3.NewS3Operator(s3.NewFromConfig(s3Cfg), config.S3.Bucket, config.S3.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create S3 operator, err=%w", op, err)
	}

	// 初始化資料庫連線
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: config.DB.Schema + ".",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	// 初始化SSE管理器
	consumer, err := redisAdapter.NewConsumer(
		redisClient,
		config.Redis.StreamKeys.Events,
		redisAdapter.WithConsumerDecodeFunc(decodePublishRequest),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create consumer, err=%w", op, err)
	}
	sseManager, err := sse.NewConnectionManager[RoundEvent](
		sse.WithLogger[RoundEvent](slog.Default()),
		sse.WithSubscriber(consumer),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create sse connection manager, err=%w", op, err)
	}

	// 初始化稽核用的group consumer
	groupConsumer, err := redisAdapter.NewGroupConsumer(
		redisClient,
		config.Redis.StreamKeys.Events,
		config.Redis.ConsumerGroup,
		config.ID,
		redisAdapter.WithGroupConsumerLogger[EventInfo](slog.Default()),
		redisAdapter.WithGroupConsumerDecodeFunc[EventInfo](decodeEventInfo),
	)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create group consumer, err=%w", op, err)
	}

	// 初始化快照儲存
	store := redisAdapter.NewStore(
		redisClient,
		redisAdapter.WithStorePrefix(config.Redis.KeyPrefix+"round:snapshot:"),
		redisAdapter.WithStoreTTL(config.Redis.ExpireTime),
	)

	return &ServerImpl{
		sseManager:    sseManager,
		s3Operator:    s3Operator,
		htmlChecker:   bluemonday.UGCPolicy(),
		redisClient:   redisClient,
		consumer:      consumer,
		groupConsumer: groupConsumer,
		store:         store,
		db:            db,
		rounds:        make(map[uuid.UUID]*roundHost),
		config:        config,
	}, nil
}

func (impl *ServerImpl) Start() {
	// 啟動consumer
	impl.consumer.Start()
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動group consumer
	if err := impl.groupConsumer.Start(); err != nil {
		slog.Error("Fail to start group consumer", slog.Any("error", err))
	}
	// 啟動一個worker用於將事件串流的內容存回資料庫
	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel
	slog.Info("Start event synchronization worker")
	impl.wg.Add(1)
	go func() {
		logger := slog.Default().With(slog.String("caller", "EventSynchronize"))
		defer impl.wg.Done()
		defer slog.Info("Event synchronization worker stopped")
		ch := impl.groupConsumer.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				logger.Debug("Receive event", slog.String("kind", msg.Data.Kind))
				handleErr := impl.recordEvent(msg.Data)
				if handleErr != nil {
					logger.Error("Fail to synchronize event", slog.Any("error", handleErr))
					if err := msg.Fail(ctx, handleErr); err != nil {
						logger.Error("Fail to fail message", slog.Any("error", err))
					}
					continue
				}
				if err := msg.Done(ctx); err != nil {
					logger.Error("Sync success but fail to done message", slog.Any("error", err))
					if err := msg.Fail(ctx, err); err != nil {
						logger.Error("Sync success but fail to fail message", slog.Any("error", err))
					}
					continue
				}
				logger.Debug("Synchronize success")
			}
		}
	}()
}

// recordEvent 將單一事件寫入稽核資料庫
func (impl *ServerImpl) recordEvent(info EventInfo) error {
	record := models.ActionRecord{
		RoundID:  info.RoundID,
		Sequence: info.Sequence,
		Kind:     info.Kind,
		LotID:    info.LotID,
		Seat:     info.Seat,
		Amount:   info.Amount,
		At:       info.CreatedAt,
	}
	if result := impl.db.Create(&record); result.Error != nil {
		return fmt.Errorf("fail to create action record, err=%w", result.Error)
	}

	switch engine.EventKind(info.Kind) {
	case engine.EventLotSold:
		sale := models.SaleRecord{
			RoundID:   info.RoundID,
			LotID:     info.LotID,
			BuyerSeat: info.Seat,
			Price:     info.Amount,
		}
		if result := impl.db.Create(&sale); result.Error != nil {
			return fmt.Errorf("fail to create sale record, err=%w", result.Error)
		}
	case engine.EventFollowUpSet:
		result := impl.db.Model(&models.SaleRecord{}).
			Where("round_id = ? AND lot_id = ?", info.RoundID, info.LotID).
			Update("listing_price", info.Amount)
		if result.Error != nil {
			return fmt.Errorf("fail to update listing price, err=%w", result.Error)
		}
	case engine.EventRoundComplete:
		result := impl.db.Model(&models.Round{}).
			Where("id = ?", info.RoundID).
			Update("completed_at", info.CreatedAt)
		if result.Error != nil {
			return fmt.Errorf("fail to mark round complete, err=%w", result.Error)
		}
	}
	return nil
}

func (impl *ServerImpl) Close() {
	// 關閉group consumer
	if err := impl.groupConsumer.Close(); err != nil {
		slog.Error("Fail to close group consumer", slog.Any("error", err))
	}
	// 關閉worker
	impl.cancelFunc()
	impl.wg.Wait()
	// 關閉consumer
	impl.consumer.Close()
	// 關閉sse connection manager
	impl.sseManager.Done()
}

// RegisterRoutes 掛載所有回合相關的路由
func (impl *ServerImpl) RegisterRoutes(router gin.IRouter) {
	rounds := router.Group("/rounds")
	rounds.POST("", impl.CreateRound)
	rounds.GET("/:roundID", impl.GetRound)
	rounds.GET("/:roundID/lots/:lotID", impl.GetLot)
	rounds.POST("/:roundID/actions", impl.SubmitAction)
	rounds.GET("/:roundID/events", impl.StreamEvents)
	rounds.GET("/:roundID/result", impl.GetResult)
}

type createRoundResponseSeat struct {
	Seat  int    `json:"seat"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

type createRoundResponse struct {
	RoundID string                    `json:"roundId"`
	Seats   []createRoundResponseSeat `json:"seats"`
}

// Create a new auction round
// (POST /rounds)
func (impl *ServerImpl) CreateRound(c *gin.Context) {
	const op = "CreateRound"

	var def rounddef.Definition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid round definition"})
		return
	}
	// 清洗展示用欄位
	for i := range def.Lots {
		def.Lots[i].Title = impl.htmlChecker.Sanitize(def.Lots[i].Title)
		def.Lots[i].Description = impl.htmlChecker.Sanitize(def.Lots[i].Description)
	}
	if err := def.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	rules, err := def.RuleSet()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	roundID, err := uuid.NewV7()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to generate round ID, err=%w", op, err))
		return
	}
	wallets := make([]engine.Wallet, len(def.Seats))
	for i := range wallets {
		wallets[i] = engine.NewCashWallet(def.StartingCash)
	}
	round, err := engine.NewRound(roundID.String(), def.LotDefs(), wallets, rules)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	// 寫入稽核資料庫
	record := models.Round{
		ID:          roundID,
		Mode:        rules.Mode.String(),
		PlayerCount: len(def.Seats),
	}
	record.Lots = lo.Map(def.Lots, func(lot rounddef.Lot, _ int) models.LotRecord {
		return models.LotRecord{
			RoundID:       roundID,
			LotID:         lot.ID,
			Title:         lot.Title,
			Description:   lot.Description,
			BasePrice:     lot.BasePrice,
			Modulus:       lot.Modulus,
			Tier:          lot.Tier,
			NeedsFollowUp: lot.NeedsFollowUp,
		}
	})
	if result := impl.db.Create(&record); result.Error != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to create round record, err=%w", op, result.Error))
		return
	}

	// 簽發席位憑證
	seats := make([]createRoundResponseSeat, len(def.Seats))
	seatNames := make([]string, len(def.Seats))
	for i, seat := range def.Seats {
		token, err := IssueSeatToken(impl.config.Auth.PrivateKey, roundID.String(), i, seat.Name, impl.config.Auth.TokenTTL)
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to issue seat token, err=%w", op, err))
			return
		}
		seats[i] = createRoundResponseSeat{Seat: i, Name: seat.Name, Token: token}
		seatNames[i] = seat.Name
	}

	host := &roundHost{round: round, seatNames: seatNames}
	impl.roundsMu.Lock()
	impl.rounds[roundID] = host
	impl.roundsMu.Unlock()

	impl.saveSnapshot(c.Request.Context(), host)

	slog.Info("Round created",
		slog.String("roundID", roundID.String()),
		slog.String("mode", rules.Mode.String()),
		slog.Int("lots", len(def.Lots)),
		slog.Int("seats", len(def.Seats)))
	c.JSON(http.StatusCreated, createRoundResponse{
		RoundID: roundID.String(),
		Seats:   seats,
	})
}

func (impl *ServerImpl) host(c *gin.Context) (uuid.UUID, *roundHost, bool) {
	roundID, err := uuid.Parse(c.Param("roundID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid round ID"})
		return uuid.Nil, nil, false
	}
	impl.roundsMu.RLock()
	host, ok := impl.rounds[roundID]
	impl.roundsMu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "round not found"})
		return uuid.Nil, nil, false
	}
	return roundID, host, true
}

// Get the current round snapshot
// (GET /rounds/{roundID})
func (impl *ServerImpl) GetRound(c *gin.Context) {
	_, host, ok := impl.host(c)
	if !ok {
		return
	}
	host.mu.Lock()
	snapshot := host.round.Snapshot()
	host.mu.Unlock()
	c.JSON(http.StatusOK, snapshot)
}

// Get a single lot state
// (GET /rounds/{roundID}/lots/{lotID})
func (impl *ServerImpl) GetLot(c *gin.Context) {
	_, host, ok := impl.host(c)
	if !ok {
		return
	}
	host.mu.Lock()
	snapshot := host.round.Snapshot()
	host.mu.Unlock()
	lot, found := lo.Find(snapshot.Lots, func(lot engine.LotSnapshot) bool {
		return lot.ID == c.Param("lotID")
	})
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"message": "lot not found"})
		return
	}
	c.JSON(http.StatusOK, lot)
}

type submitActionRequest struct {
	Kind   string `json:"kind" binding:"required"`
	LotID  string `json:"lotId"`
	Amount int    `json:"amount"`
}

type submitActionResponse struct {
	Events []RoundEvent `json:"events"`
}

type rejectionResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Submit a player action
// (POST /rounds/{roundID}/actions)
func (impl *ServerImpl) SubmitAction(c *gin.Context) {
	const op = "SubmitAction"

	roundID, host, ok := impl.host(c)
	if !ok {
		return
	}

	// 驗證席位憑證
	tokenString := bearerToken(c)
	if tokenString == "" {
		c.Status(http.StatusUnauthorized)
		return
	}
	token, err := ParseAndValidateSeatToken(tokenString, impl.config.Auth.PrivateKey)
	if err != nil {
		slog.Error("Fail to parse and validate seat token", slog.String("op", op), slog.Any("error", err))
		c.Status(http.StatusUnauthorized)
		return
	}
	if token.Subject != roundID.String() {
		c.Status(http.StatusForbidden)
		return
	}

	var request submitActionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid action"})
		return
	}
	action, ok := buildAction(engine.Seat(token.Seat), request)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("unknown action kind %q", request.Kind)})
		return
	}

	// 取得回合的提交鎖，跨實例序列化動作
	lockKey := fmt.Sprintf("%sround:%s:lock", impl.config.Redis.KeyPrefix, roundID)
	dMutex := redisAdapter.NewAutoRenewMutex(impl.redisClient, lockKey)
	lockCtx, err := dMutex.Lock(c.Request.Context())
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to acquire round lock, err=%w", op, err))
		return
	}
	defer func() {
		if _, err := dMutex.Unlock(); err != nil {
			slog.Warn("Fail to release round lock", slog.String("op", op), slog.Any("error", err))
		}
	}()

	host.mu.Lock()
	events, err := host.round.Submit(action)
	complete := host.round.Complete()
	var snapshot *engine.Snapshot
	if err == nil {
		s := host.round.Snapshot()
		snapshot = &s
	}
	host.mu.Unlock()

	if err != nil {
		if errors.Is(err, engine.ErrRoundAborted) {
			c.JSON(http.StatusGone, gin.H{"message": "round aborted"})
			return
		}
		if engine.IsFatal(err) {
			slog.Error("Round aborted by invariant violation",
				slog.String("roundID", roundID.String()),
				slog.Any("error", err))
			c.JSON(http.StatusUnprocessableEntity, rejectionResponse{
				Code:   "InvariantViolation",
				Detail: err.Error(),
			})
			return
		}
		var rejection *engine.Rejection
		if errors.As(err, &rejection) {
			c.JSON(http.StatusConflict, rejectionResponse{
				Code:   rejection.Code.String(),
				Detail: rejection.Detail,
			})
			return
		}
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to submit action, err=%w", op, err))
		return
	}

	// 發布事件並更新快照
	published, err := impl.publishEvents(lockCtx, roundID, host, events)
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to publish events, err=%w", op, err))
		return
	}
	impl.saveSnapshotValue(lockCtx, roundID, snapshot)
	if complete {
		impl.archiveResult(lockCtx, roundID, host)
	}

	c.JSON(http.StatusOK, submitActionResponse{Events: published})
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return c.Query("access_token")
}

func buildAction(seat engine.Seat, request submitActionRequest) (engine.Action, bool) {
	switch engine.ActionKind(request.Kind) {
	case engine.ActBid:
		return engine.BidAction(seat, request.LotID, request.Amount), true
	case engine.ActPass:
		return engine.PassAction(seat), true
	case engine.ActBuy:
		return engine.BuyAction(seat, request.LotID), true
	case engine.ActSetFollowUp:
		return engine.FollowUpAction(seat, request.LotID, request.Amount), true
	}
	return engine.Action{}, false
}

// publishEvents 依序將引擎事件寫入事件串流並回傳發布後的事件
func (impl *ServerImpl) publishEvents(ctx context.Context, roundID uuid.UUID, host *roundHost, events []engine.Event) ([]RoundEvent, error) {
	seqKey := fmt.Sprintf("%sround:%s:seq", impl.config.Redis.KeyPrefix, roundID)
	expire := int(impl.config.Redis.ExpireTime.Seconds())

	published := make([]RoundEvent, 0, len(events))
	for _, event := range events {
		info := newEventInfo(roundID, host.seatName(int(event.Seat)), event)
		infoBytes, err := msgpack.Marshal(info)
		if err != nil {
			return nil, fmt.Errorf("fail to marshal event, err=%w", err)
		}
		infoBase64 := base64.StdEncoding.EncodeToString(infoBytes)
		seq, err := EventScript.Run(ctx, impl.redisClient, []string{seqKey, impl.config.Redis.StreamKeys.Events}, infoBase64, expire).Uint64()
		if err != nil {
			return nil, fmt.Errorf("fail to publish event, err=%w", err)
		}
		published = append(published, RoundEvent{
			Seq:      seq,
			Kind:     info.Kind,
			LotID:    info.LotID,
			Seat:     info.Seat,
			SeatName: info.SeatName,
			Amount:   info.Amount,
			Result:   info.Result,
			Time:     info.CreatedAt,
		})
	}
	return published, nil
}

func (impl *ServerImpl) saveSnapshot(ctx context.Context, host *roundHost) {
	host.mu.Lock()
	snapshot := host.round.Snapshot()
	host.mu.Unlock()
	roundID, err := uuid.Parse(snapshot.RoundID)
	if err != nil {
		slog.Error("Invalid round ID in snapshot", slog.Any("error", err))
		return
	}
	impl.saveSnapshotValue(ctx, roundID, &snapshot)
}

// saveSnapshotValue 將快照寫入 Redis，失敗只記錄不中斷請求
func (impl *ServerImpl) saveSnapshotValue(ctx context.Context, roundID uuid.UUID, snapshot *engine.Snapshot) {
	if snapshot == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("Fail to marshal snapshot", slog.Any("error", err))
		return
	}
	err = impl.store.Save(ctx, roundID.String(), map[string]string{
		"snapshot":  string(data),
		"updatedAt": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("Fail to save snapshot", slog.String("roundID", roundID.String()), slog.Any("error", err))
	}
}

// archiveResult 在回合結束時將結算結果歸檔至 S3
func (impl *ServerImpl) archiveResult(ctx context.Context, roundID uuid.UUID, host *roundHost) {
	host.mu.Lock()
	result, ok := host.round.Result()
	host.mu.Unlock()
	if !ok {
		return
	}
	uri, err := impl.s3Operator.ArchiveResult(ctx, roundID.String(), result)
	if err != nil {
		slog.Error("Fail to archive round result", slog.String("roundID", roundID.String()), slog.Any("error", err))
		return
	}
	host.mu.Lock()
	host.resultURL = uri
	host.mu.Unlock()
	slog.Info("Round result archived", slog.String("roundID", roundID.String()), slog.String("uri", uri))
}

type resultResponse struct {
	Result     *engine.RoundResult `json:"result"`
	ArchiveURL string              `json:"archiveUrl,omitempty"`
}

// Get the final round result
// (GET /rounds/{roundID}/result)
func (impl *ServerImpl) GetResult(c *gin.Context) {
	_, host, ok := impl.host(c)
	if !ok {
		return
	}
	host.mu.Lock()
	result, done := host.round.Result()
	uri := host.resultURL
	host.mu.Unlock()
	if !done {
		c.JSON(http.StatusNotFound, gin.H{"message": "round not complete"})
		return
	}
	c.JSON(http.StatusOK, resultResponse{Result: result, ArchiveURL: uri})
}

// Track round events
// (GET /rounds/{roundID}/events)
func (impl *ServerImpl) StreamEvents(c *gin.Context) {
	const op = "StreamEvents"

	roundID, _, ok := impl.host(c)
	if !ok {
		return
	}

	// SSE請求合法，開始初始化串流
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	ch, err := impl.sseManager.Subscribe(roundID.String())
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("[%s] Fail to subscribe to round events, err=%w", op, err))
		return
	}
LOOP:
	for {
		select {
		case <-w.CloseNotify():
			impl.sseManager.Unsubscribe(roundID.String(), ch)
			break LOOP
		case event := <-ch:
			c.SSEvent("round", event)
			w.Flush()
		// 30秒沒有事件就發送一個空行，確保瀏覽器和反向代理不會斷開連線
		case <-time.After(30 * time.Second):
			w.WriteString("\n\n")
			w.Flush()
		}
	}
}
