/*
Copyright 2026 Presslane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/presslane/newswire/internal/apierror"
	"github.com/presslane/newswire/model"
)

const queueColumns = `
	queue_id, item_id, item_version, subscriber_id, destination, formatted_item,
	encoded_item_id, published_seq_num, publishing_action, codes, content_type,
	headline, unique_name, associated_items, state, retry_attempt,
	next_retry_attempt_at, error_message, publish_schedule, transmit_started_at,
	completed_at, moved_to_legal, created_at`

// EnqueueItem inserts a delivery entry unless an equivalent live entry already
// exists for the same item version, subscriber and destination. Returns true
// when a new entry was created.
func (d Datasource) EnqueueItem(ctx context.Context, entry *model.QueueItem) (bool, error) {
	destJSON, err := json.Marshal(entry.Destination)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal destination", err)
	}

	// A resend deliberately repeats an earlier delivery; everything else is
	// idempotent per item version, subscriber and destination.
	if entry.PublishingAction != model.ActionResend {
		exists, err := d.QueueEntryExists(ctx, entry.ItemID, entry.ItemVersion, entry.SubscriberID, entry.Destination.Name)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	entry.QueueID = GenerateUUIDWithSuffix("dq")
	if entry.State == "" {
		entry.State = model.StatePending
	}
	entry.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO delivery_queue (queue_id, item_id, item_version, subscriber_id, destination, formatted_item, encoded_item_id, published_seq_num, publishing_action, codes, content_type, headline, unique_name, associated_items, state, publish_schedule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, entry.QueueID, entry.ItemID, entry.ItemVersion, entry.SubscriberID, destJSON,
		entry.FormattedItem, entry.EncodedItemID, entry.PublishedSeqNum, entry.PublishingAction,
		pq.Array(entry.Codes), entry.ContentType, entry.Headline, entry.UniqueName,
		pq.Array(entry.AssociatedItems), entry.State, entry.PublishSchedule, entry.CreatedAt)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to enqueue delivery", err)
	}
	return true, nil
}

// QueueEntryExists reports whether a live entry already exists for the item
// version, subscriber and destination.
func (d Datasource) QueueEntryExists(ctx context.Context, itemID string, version int, subscriberID, destinationName string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM delivery_queue
			WHERE item_id = $1 AND item_version = $2 AND subscriber_id = $3
			  AND destination->>'name' = $4 AND state != 'canceled'
		)
	`, itemID, version, subscriberID, destinationName).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check for existing queue entry", err)
	}
	return exists, nil
}

func (d Datasource) GetQueueItemByID(ctx context.Context, id string) (*model.QueueItem, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+queueColumns+`
		FROM delivery_queue
		WHERE queue_id = $1
	`, id)

	entry, err := scanQueueItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Queue entry not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve queue entry", err)
	}
	return &entry, nil
}

func (d Datasource) GetQueueItemsForItem(ctx context.Context, itemID string) ([]model.QueueItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM delivery_queue
		WHERE item_id = $1
		ORDER BY created_at DESC
	`, itemID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve queue entries", err)
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

func (d Datasource) GetQueueItemsForSubscriber(ctx context.Context, subscriberID string, limit, offset int) ([]model.QueueItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM delivery_queue
		WHERE subscriber_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, subscriberID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve queue entries", err)
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

// GetDueQueueItems returns entries ready for transmission: pending entries
// whose publish schedule has passed, and retrying entries whose backoff delay
// has elapsed. Ordered oldest first so deliveries stay in publish order.
func (d Datasource) GetDueQueueItems(ctx context.Context, asOf time.Time, limit int) ([]model.QueueItem, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM delivery_queue
		WHERE (state = 'pending' AND (publish_schedule IS NULL OR publish_schedule <= $1))
		   OR (state = 'retrying' AND next_retry_attempt_at <= $1)
		ORDER BY created_at ASC
		LIMIT $2
	`, asOf, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve due queue entries", err)
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

// GetPriorDeliverySubscriberIDs returns the subscribers any published or
// corrected version of the item was queued for. Corrections and takedowns go
// to these regardless of current targeting, so nobody is left holding a
// stale copy. Kill notices and operator resends don't count as holding one.
func (d Datasource) GetPriorDeliverySubscriberIDs(ctx context.Context, itemID string) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT DISTINCT subscriber_id
		FROM delivery_queue
		WHERE item_id = $1 AND state != 'canceled'
		  AND publishing_action IN ('publish', 'correct')
	`, itemID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve prior deliveries", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan subscriber id", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over prior deliveries", err)
	}
	return ids, nil
}

// MarkInProgress claims a queue entry for transmission. The state guard makes
// the claim atomic, so two scheduler passes never transmit the same entry.
func (d Datasource) MarkInProgress(ctx context.Context, queueID string) (bool, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE delivery_queue
		SET state = 'in-progress', transmit_started_at = NOW()
		WHERE queue_id = $1 AND state IN ('pending', 'retrying')
	`, queueID)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to claim queue entry", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read claim result", err)
	}
	return affected > 0, nil
}

func (d Datasource) MarkSuccess(ctx context.Context, queueID string) error {
	return d.updateFromInProgress(ctx, queueID, model.StateSuccess, "")
}

// MarkRetrying schedules another attempt and bumps the attempt counter.
func (d Datasource) MarkRetrying(ctx context.Context, queueID string, nextAttemptAt time.Time, errMessage string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE delivery_queue
		SET state = 'retrying', retry_attempt = retry_attempt + 1,
			next_retry_attempt_at = $2, error_message = $3
		WHERE queue_id = $1 AND state = 'in-progress'
	`, queueID, nextAttemptAt, errMessage)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to schedule retry", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read retry result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, "Queue entry is not in progress", nil)
	}
	return nil
}

// MarkTerminal moves an in-progress entry to one of the terminal states.
func (d Datasource) MarkTerminal(ctx context.Context, queueID string, state model.QueueState, errMessage string) error {
	if !state.IsTerminal() {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "State is not terminal", nil)
	}
	return d.updateFromInProgress(ctx, queueID, state, errMessage)
}

func (d Datasource) updateFromInProgress(ctx context.Context, queueID string, state model.QueueState, errMessage string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE delivery_queue
		SET state = $2, error_message = NULLIF($3, ''), completed_at = NOW()
		WHERE queue_id = $1 AND state = 'in-progress'
	`, queueID, state, errMessage)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update queue entry state", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read state update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, "Queue entry is not in progress", nil)
	}
	return nil
}

// CancelTransmissions cancels every unsent entry for an item. Used on kill and
// takedown so superseded versions never leave the building.
func (d Datasource) CancelTransmissions(ctx context.Context, itemID string) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE delivery_queue
		SET state = 'canceled', completed_at = NOW()
		WHERE item_id = $1 AND state IN ('pending', 'retrying', 'in-progress')
	`, itemID)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to cancel transmissions", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read cancel result", err)
	}
	return affected, nil
}

// RequeueItem clones a finished queue entry into a fresh pending one, used by
// operator resend. The original entry keeps its history.
func (d Datasource) RequeueItem(ctx context.Context, queueID string) (*model.QueueItem, error) {
	original, err := d.GetQueueItemByID(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if !original.State.IsTerminal() {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "Queue entry is still live", nil)
	}

	clone := *original
	clone.State = model.StatePending
	clone.RetryAttempt = 0
	clone.NextRetryAttemptAt = nil
	clone.ErrorMessage = ""
	clone.TransmitStartedAt = nil
	clone.CompletedAt = nil
	clone.QueueID = GenerateUUIDWithSuffix("dq")
	clone.CreatedAt = time.Now()

	destJSON, err := json.Marshal(clone.Destination)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal destination", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO delivery_queue (queue_id, item_id, item_version, subscriber_id, destination, formatted_item, encoded_item_id, published_seq_num, publishing_action, codes, content_type, headline, unique_name, associated_items, state, publish_schedule, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, clone.QueueID, clone.ItemID, clone.ItemVersion, clone.SubscriberID, destJSON,
		clone.FormattedItem, clone.EncodedItemID, clone.PublishedSeqNum, clone.PublishingAction,
		pq.Array(clone.Codes), clone.ContentType, clone.Headline, clone.UniqueName,
		pq.Array(clone.AssociatedItems), clone.State, clone.PublishSchedule, clone.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to requeue entry", err)
	}
	return &clone, nil
}

// ResetStaleInProgress returns entries stuck in-progress back to pending. A
// worker crash mid-transmit otherwise leaves them claimed forever.
func (d Datasource) ResetStaleInProgress(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE delivery_queue
		SET state = 'pending', transmit_started_at = NULL
		WHERE state = 'in-progress' AND transmit_started_at < $1
	`, olderThan)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to reset stale entries", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read reset result", err)
	}
	return affected, nil
}

// DeleteQueueItemsByItem removes every queue entry for an item and returns the
// blob keys of offloaded payloads so the caller can clean the blob store.
func (d Datasource) DeleteQueueItemsByItem(ctx context.Context, itemID string) ([]string, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		DELETE FROM delivery_queue
		WHERE item_id = $1
		RETURNING encoded_item_id
	`, itemID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete queue entries", err)
	}
	defer rows.Close()

	blobKeys := []string{}
	for rows.Next() {
		var key sql.NullString
		if err := rows.Scan(&key); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan blob key", err)
		}
		if key.String != "" {
			blobKeys = append(blobKeys, key.String)
		}
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while deleting queue entries", err)
	}
	return blobKeys, nil
}

// MarkMovedToLegal flags the item's queue history as archived to legal.
func (d Datasource) MarkMovedToLegal(ctx context.Context, itemID string) (int64, error) {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE delivery_queue
		SET moved_to_legal = TRUE
		WHERE item_id = $1 AND moved_to_legal = FALSE
	`, itemID)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to flag entries as moved to legal", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read legal flag result", err)
	}
	return affected, nil
}

func (d Datasource) StorePackageRefs(ctx context.Context, itemID string, version int, residRefs []string) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO package_refs (item_id, item_version, resid_refs)
		VALUES ($1, $2, $3)
		ON CONFLICT (item_id, item_version) DO UPDATE SET resid_refs = EXCLUDED.resid_refs
	`, itemID, version, pq.Array(residRefs))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to store package references", err)
	}
	return nil
}

func (d Datasource) GetPackageRefs(ctx context.Context, itemID string, version int) ([]string, error) {
	var refs pq.StringArray
	err := d.Conn.QueryRowContext(ctx, `
		SELECT resid_refs FROM package_refs
		WHERE item_id = $1 AND item_version = $2
	`, itemID, version).Scan(&refs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve package references", err)
	}
	return refs, nil
}

func scanQueueItem(row interface {
	Scan(dest ...interface{}) error
}) (model.QueueItem, error) {
	var entry model.QueueItem
	var destJSON []byte
	var formatted, encoded, publishingAction, contentType, headline, uniqueName, errMessage sql.NullString
	var seqNum sql.NullInt64
	var codes, associated pq.StringArray
	var nextRetry, schedule, started, completed sql.NullTime

	err := row.Scan(&entry.QueueID, &entry.ItemID, &entry.ItemVersion, &entry.SubscriberID,
		&destJSON, &formatted, &encoded, &seqNum, &publishingAction, &codes, &contentType,
		&headline, &uniqueName, &associated, &entry.State, &entry.RetryAttempt,
		&nextRetry, &errMessage, &schedule, &started, &completed, &entry.MovedToLegal, &entry.CreatedAt)
	if err != nil {
		return entry, err
	}

	if err := json.Unmarshal(destJSON, &entry.Destination); err != nil {
		return entry, err
	}
	entry.FormattedItem = formatted.String
	entry.EncodedItemID = encoded.String
	entry.PublishedSeqNum = int(seqNum.Int64)
	entry.PublishingAction = publishingAction.String
	entry.Codes = codes
	entry.ContentType = contentType.String
	entry.Headline = headline.String
	entry.UniqueName = uniqueName.String
	entry.AssociatedItems = associated
	entry.ErrorMessage = errMessage.String
	if nextRetry.Valid {
		entry.NextRetryAttemptAt = &nextRetry.Time
	}
	if schedule.Valid {
		entry.PublishSchedule = &schedule.Time
	}
	if started.Valid {
		entry.TransmitStartedAt = &started.Time
	}
	if completed.Valid {
		entry.CompletedAt = &completed.Time
	}
	return entry, nil
}

func collectQueueItems(rows *sql.Rows) ([]model.QueueItem, error) {
	entries := []model.QueueItem{}
	for rows.Next() {
		entry, err := scanQueueItem(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan queue entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over queue entries", err)
	}
	return entries, nil
}
