package service

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/pulsegrid/notify-backend/internal/cache"
	"github.com/pulsegrid/notify-backend/internal/models"
	"github.com/pulsegrid/notify-backend/internal/repository"
	"github.com/pulsegrid/notify-backend/internal/routing"
	"github.com/pulsegrid/notify-backend/internal/validation"
)

// Transport is the push side of the websocket hub. SendToUser must deliver
// the payload to every live connection of the user that is subscribed and
// permitted for the category, returning how many connections were reached.
// Zero with a nil error means no connection receives this category; IsOnline
// tells whether the user has any live connection at all, so replay can
// distinguish an offline user from an unreachable category.
// BroadcastToCategory delivers to a whole category room in one pass and
// reports connections reached per user; an empty room is a normal outcome.
type Transport interface {
	SendToUser(userID uint, category models.Category, payload interface{}) (int, error)
	BroadcastToCategory(category models.Category, payload interface{}) (map[uint]int, error)
	IsOnline(userID uint) bool
}

// Archiver receives expired notifications before their rows are deleted.
type Archiver interface {
	ArchiveNotification(notification *models.Notification) error
}

// DeliveryStats is a snapshot of the engine's counters plus store-backed
// queue depths.
type DeliveryStats struct {
	TotalInStore    int64 `json:"total_in_store"`
	Unread          int64 `json:"unread"`
	PendingDelivery int64 `json:"pending_delivery"`
	OfflineQueue    int64 `json:"offline_queue_depth"`
	RetryQueue      int64 `json:"retry_queue_depth"`
	TotalSent       int64 `json:"total_sent"`
	DeliveredOnline int64 `json:"delivered_online"`
	QueuedOffline   int64 `json:"queued_offline"`
	Failed          int64 `json:"failed"`
	Replayed        int64 `json:"replayed"`
}

// NotificationService is the delivery engine: it persists notifications,
// routes them to live connections through the transport, and leaves
// offline recipients to the replay path.
type NotificationService struct {
	notificationRepo repository.NotificationRepositoryInterface
	deliveryRepo     repository.DeliveryRecordRepositoryInterface
	userRepo         repository.UserRepositoryInterface
	notificationCache *cache.NotificationCache

	transport Transport
	archiver  Archiver

	maxRetries     int
	baseRetryDelay time.Duration

	statsMux        sync.Mutex
	totalSent       int64
	deliveredOnline int64
	queuedOffline   int64
	failed          int64
	replayed        int64
	retryInFlight   int64

	cleanupStop chan struct{}
}

func NewNotificationService(
	notificationRepo repository.NotificationRepositoryInterface,
	deliveryRepo repository.DeliveryRecordRepositoryInterface,
	userRepo repository.UserRepositoryInterface,
	notificationCache *cache.NotificationCache,
) *NotificationService {
	return &NotificationService{
		notificationRepo:  notificationRepo,
		deliveryRepo:      deliveryRepo,
		userRepo:          userRepo,
		notificationCache: notificationCache,
		maxRetries:        3,
		baseRetryDelay:    100 * time.Millisecond,
		cleanupStop:       make(chan struct{}),
	}
}

// SetTransport wires the websocket hub in after construction. The hub and
// the service reference each other, so one side has to be attached late.
func (s *NotificationService) SetTransport(transport Transport) {
	s.transport = transport
}

func (s *NotificationService) SetArchiver(archiver Archiver) {
	s.archiver = archiver
}

// Send persists the notification with one delivery record per recipient and
// then attempts immediate delivery to each. The router is consulted per
// recipient before any record is created, so a record never exists for a
// user whose role may not receive the category. The notification is durable
// before the first delivery attempt; a crash afterwards is recovered by
// replay because delivered_at stays unset.
func (s *NotificationService) Send(notification *models.Notification, recipientIDs []uint) error {
	if err := validation.ValidateNotification(notification); err != nil {
		return err
	}
	if len(recipientIDs) == 0 {
		return ErrInvalidMessage
	}

	allowed := make([]uint, 0, len(recipientIDs))
	for _, userID := range recipientIDs {
		user, err := s.userRepo.FindByID(userID)
		if err != nil {
			return &PersistenceError{Op: "resolve recipient", Err: err}
		}
		if !routing.Allowed(user.Role, notification.Category) {
			log.Printf("Recipient %d (role %s) may not receive category %q, dropped from delivery", userID, user.Role, notification.Category)
			continue
		}
		allowed = append(allowed, userID)
	}
	if len(allowed) == 0 {
		return ErrPermissionDenied
	}

	if err := s.notificationRepo.CreateWithRecords(notification, allowed); err != nil {
		return &PersistenceError{Op: "create", Err: err}
	}

	for _, userID := range allowed {
		s.deliver(notification, userID)
	}

	s.statsMux.Lock()
	s.totalSent++
	s.statsMux.Unlock()
	return nil
}

// deliver makes the first online delivery attempt for one recipient.
// Transport failures never propagate; they move into the retry loop and,
// if that exhausts, the recipient stays on the offline path.
func (s *NotificationService) deliver(notification *models.Notification, userID uint) {
	if s.transport == nil {
		s.countQueued(userID)
		return
	}

	delivered, err := s.transport.SendToUser(userID, notification.Category, notification.ToResponse())
	if err != nil {
		now := time.Now()
		if recErr := s.deliveryRepo.IncrementAttempts(notification.ID, userID, now); recErr != nil {
			log.Printf("Failed to record delivery attempt for notification %d user %d: %v", notification.ID, userID, recErr)
		}
		log.Printf("Scheduling delivery retries: %v", &TransportError{UserID: userID, Err: err})
		go s.retryDelivery(notification, userID)
		return
	}

	if delivered == 0 {
		// User offline: the pending delivery record is the offline queue
		s.countQueued(userID)
		return
	}

	now := time.Now()
	if err := s.deliveryRepo.IncrementAttempts(notification.ID, userID, now); err != nil {
		log.Printf("Failed to record delivery attempt for notification %d user %d: %v", notification.ID, userID, err)
	}
	if err := s.deliveryRepo.MarkDelivered(notification.ID, userID, now); err != nil {
		log.Printf("Failed to stamp delivery for notification %d user %d: %v", notification.ID, userID, err)
	}
	s.notificationCache.Invalidate(userID)

	s.statsMux.Lock()
	s.deliveredOnline++
	s.statsMux.Unlock()
}

// retryDelivery runs the bounded backoff loop after a transport failure.
// Attempt delays double from the base with a little jitter. When the budget
// is exhausted the recipient is left pending for replay.
func (s *NotificationService) retryDelivery(notification *models.Notification, userID uint) {
	s.statsMux.Lock()
	s.retryInFlight++
	s.statsMux.Unlock()
	defer func() {
		s.statsMux.Lock()
		s.retryInFlight--
		s.statsMux.Unlock()
	}()

	delay := s.baseRetryDelay
	for attempt := 2; attempt <= s.maxRetries; attempt++ {
		jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
		time.Sleep(delay + jitter)
		delay *= 2

		if notification.Expired(time.Now()) {
			return
		}

		now := time.Now()
		if err := s.deliveryRepo.IncrementAttempts(notification.ID, userID, now); err != nil {
			log.Printf("Failed to record delivery attempt for notification %d user %d: %v", notification.ID, userID, err)
		}

		delivered, err := s.transport.SendToUser(userID, notification.Category, notification.ToResponse())
		if err != nil {
			continue
		}
		if delivered == 0 {
			// User went offline between attempts; replay picks this up
			s.countQueued(userID)
			return
		}

		if err := s.deliveryRepo.MarkDelivered(notification.ID, userID, now); err != nil {
			log.Printf("Failed to stamp delivery for notification %d user %d: %v", notification.ID, userID, err)
		}
		s.notificationCache.Invalidate(userID)
		s.statsMux.Lock()
		s.deliveredOnline++
		s.statsMux.Unlock()
		return
	}

	// Retry budget exhausted: downgrade to the offline path
	log.Printf("Delivery retries exhausted for notification %d user %d, downgraded to offline queue", notification.ID, userID)
	s.statsMux.Lock()
	s.failed++
	s.queuedOffline++
	s.statsMux.Unlock()
}

func (s *NotificationService) countQueued(userID uint) {
	s.statsMux.Lock()
	s.queuedOffline++
	s.statsMux.Unlock()
	log.Printf("User %d offline, notification queued for replay", userID)
}

// SendUserNotification delivers a direct notification to one user.
func (s *NotificationService) SendUserNotification(userID uint, notification *models.Notification) error {
	if notification.TargetUserID == nil {
		notification.TargetUserID = &userID
	}
	return s.Send(notification, []uint{userID})
}

// SendAdminAlert fans an admin alert out to every admin-role user.
func (s *NotificationService) SendAdminAlert(notification *models.Notification) error {
	admins, err := s.userRepo.FindAdmins()
	if err != nil {
		return &PersistenceError{Op: "resolve admins", Err: err}
	}
	ids := make([]uint, 0, len(admins))
	for _, admin := range admins {
		ids = append(ids, admin.ID)
	}
	return s.Send(notification, ids)
}

// Broadcast fans a category broadcast out to every user the router permits
// for that category. One delivery record per user is created even when the
// user has several live connections; the room broadcast reaches every
// connection once, and users outside the room fall to the offline path.
func (s *NotificationService) Broadcast(notification *models.Notification, category models.Category) error {
	if notification.TargetCategory == nil {
		notification.TargetCategory = &category
	}
	if err := validation.ValidateNotification(notification); err != nil {
		return err
	}

	var ids []uint
	var err error
	if routing.Allowed(models.RoleUser, category) {
		ids, err = s.userRepo.FindAllIDs()
	} else {
		var admins []models.User
		admins, err = s.userRepo.FindAdmins()
		for _, admin := range admins {
			ids = append(ids, admin.ID)
		}
	}
	if err != nil {
		return &PersistenceError{Op: "resolve recipients", Err: err}
	}
	if len(ids) == 0 {
		return ErrInvalidMessage
	}

	if err := s.notificationRepo.CreateWithRecords(notification, ids); err != nil {
		return &PersistenceError{Op: "create", Err: err}
	}

	reached := map[uint]int{}
	if s.transport != nil {
		reached, err = s.transport.BroadcastToCategory(category, notification.ToResponse())
		if err != nil {
			log.Printf("Category broadcast for %q failed at transport, recipients stay queued: %v", category, err)
			reached = map[uint]int{}
		}
	}

	now := time.Now()
	for _, userID := range ids {
		if reached[userID] > 0 {
			if err := s.deliveryRepo.IncrementAttempts(notification.ID, userID, now); err != nil {
				log.Printf("Failed to record broadcast attempt for notification %d user %d: %v", notification.ID, userID, err)
			}
			if err := s.deliveryRepo.MarkDelivered(notification.ID, userID, now); err != nil {
				log.Printf("Failed to stamp broadcast delivery for notification %d user %d: %v", notification.ID, userID, err)
			}
			s.notificationCache.Invalidate(userID)
			s.statsMux.Lock()
			s.deliveredOnline++
			s.statsMux.Unlock()
		} else {
			s.countQueued(userID)
		}
	}

	s.statsMux.Lock()
	s.totalSent++
	s.statsMux.Unlock()
	return nil
}

// Replay delivers the user's pending, non-expired notifications in creation
// order and returns how many went out. It runs when a connection registers,
// so a recipient that reconnects to a different instance than the sender
// still catches up from the shared store. Already-delivered records are
// never replayed again, which makes repeated reconnects idempotent.
func (s *NotificationService) Replay(userID uint) (int, error) {
	pending, err := s.deliveryRepo.FindPendingForUser(userID)
	if err != nil {
		return 0, &PersistenceError{Op: "load pending", Err: err}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	count := 0
	now := time.Now()
	for i := range pending {
		record := &pending[i]
		notification := &record.Notification

		if notification.Expired(now) {
			if err := s.deliveryRepo.MarkSkipped(notification.ID, userID); err != nil {
				log.Printf("Failed to skip expired notification %d for user %d: %v", notification.ID, userID, err)
			}
			continue
		}

		if s.transport == nil {
			break
		}
		delivered, err := s.transport.SendToUser(userID, notification.Category, notification.ToResponse())
		if err != nil {
			// Connection dropped mid-replay; the rest stays pending
			break
		}
		if delivered == 0 {
			if s.transport.IsOnline(userID) {
				// Live connections exist but none receives this category
				// (role changed since the send). Leave the record pending
				// and keep replaying the rest so one unreachable record
				// never blocks the queue behind it.
				continue
			}
			break
		}

		stamp := time.Now()
		if err := s.deliveryRepo.IncrementAttempts(notification.ID, userID, stamp); err != nil {
			log.Printf("Failed to record replay attempt for notification %d user %d: %v", notification.ID, userID, err)
		}
		if err := s.deliveryRepo.MarkDelivered(notification.ID, userID, stamp); err != nil {
			log.Printf("Failed to stamp replay delivery for notification %d user %d: %v", notification.ID, userID, err)
			break
		}
		count++
	}

	if count > 0 {
		s.notificationCache.Invalidate(userID)
		s.statsMux.Lock()
		s.replayed += int64(count)
		s.statsMux.Unlock()
		log.Printf("Replayed %d pending notifications to user %d", count, userID)
	}
	return count, nil
}

// GetUserNotifications returns the user's history, newest first.
func (s *NotificationService) GetUserNotifications(userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if cached, ok := s.notificationCache.GetHistory(userID, limit); ok {
		return cached, nil
	}
	notifications, err := s.notificationRepo.ListForUser(userID, limit)
	if err != nil {
		return nil, err
	}
	s.notificationCache.SetHistory(userID, limit, notifications)
	return notifications, nil
}

// MarkRead stamps the read acknowledgement for one notification.
func (s *NotificationService) MarkRead(publicID string, userID uint) error {
	notification, err := s.notificationRepo.FindByPublicID(publicID)
	if err != nil {
		return err
	}
	if err := s.deliveryRepo.MarkRead(notification.ID, userID, time.Now()); err != nil {
		return err
	}
	s.notificationCache.Invalidate(userID)
	return nil
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	return s.deliveryRepo.CountUnreadForUser(userID)
}

// Stats merges store-backed queue depths with the in-memory counters.
func (s *NotificationService) Stats() (DeliveryStats, error) {
	total, err := s.notificationRepo.CountAll()
	if err != nil {
		return DeliveryStats{}, err
	}
	pending, err := s.deliveryRepo.CountPending()
	if err != nil {
		return DeliveryStats{}, err
	}
	unread, err := s.deliveryRepo.CountUnread()
	if err != nil {
		return DeliveryStats{}, err
	}

	s.statsMux.Lock()
	defer s.statsMux.Unlock()
	return DeliveryStats{
		TotalInStore:    total,
		Unread:          unread,
		PendingDelivery: pending,
		OfflineQueue:    pending,
		RetryQueue:      s.retryInFlight,
		TotalSent:       s.totalSent,
		DeliveredOnline: s.deliveredOnline,
		QueuedOffline:   s.queuedOffline,
		Failed:          s.failed,
		Replayed:        s.replayed,
	}, nil
}

// CleanupExpired removes expired notifications whose recipients have all
// received or skipped them, archiving each one first when an archiver is
// configured. Returns the number of notifications removed.
func (s *NotificationService) CleanupExpired() (int, error) {
	removed := 0
	for {
		candidates, err := s.notificationRepo.FindCleanupCandidates(time.Now(), 200)
		if err != nil {
			return removed, &PersistenceError{Op: "find expired", Err: err}
		}
		if len(candidates) == 0 {
			return removed, nil
		}

		ids := make([]uint, 0, len(candidates))
		for i := range candidates {
			notification := &candidates[i]
			if s.archiver != nil {
				if err := s.archiver.ArchiveNotification(notification); err != nil {
					// Archive failure keeps the rows; the next sweep retries
					log.Printf("Failed to archive notification %d, keeping rows: %v", notification.ID, err)
					continue
				}
			}
			ids = append(ids, notification.ID)
		}

		n, err := s.notificationRepo.DeleteWithRecords(ids)
		if err != nil {
			return removed, &PersistenceError{Op: "delete expired", Err: err}
		}
		removed += int(n)
		if n == 0 || len(candidates) < 200 {
			// Nothing removed means every candidate failed archiving; the
			// next candidate fetch would return the same rows, so stop and
			// let the next sweep retry.
			return removed, nil
		}
	}
}

// StartCleanupSweeper runs CleanupExpired on a fixed interval until Stop.
func (s *NotificationService) StartCleanupSweeper(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				if n, err := s.CleanupExpired(); err != nil {
					log.Printf("Cleanup sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("Cleanup sweep removed %d expired notifications", n)
				}
			}
		}
	}()
}

// Stop shuts down background workers.
func (s *NotificationService) Stop() {
	close(s.cleanupStop)
}
