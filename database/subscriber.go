package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/presslane/newswire/config"
	"github.com/presslane/newswire/internal/apierror"
	"github.com/presslane/newswire/model"
)

func (d Datasource) CreateSubscriber(ctx context.Context, sub model.Subscriber) (model.Subscriber, error) {
	seqJSON, err := json.Marshal(sub.SequenceNumSettings)
	if err != nil {
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal sequence settings", err)
	}
	criticalJSON, err := json.Marshal(sub.CriticalErrors)
	if err != nil {
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal critical errors", err)
	}
	globalJSON, err := json.Marshal(sub.GlobalFilters)
	if err != nil {
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal global filters", err)
	}
	destJSON, err := json.Marshal(sub.Destinations)
	if err != nil {
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal destinations", err)
	}

	sub.SubscriberID = GenerateUUIDWithSuffix("sub")
	sub.IsActive = true
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = sub.CreatedAt
	if sub.SubscriberType == "" {
		sub.SubscriberType = model.SubscriberTypeAll
	}
	if sub.SequenceNumSettings.Max <= 0 {
		sub.SequenceNumSettings.Max = config.DEFAULT_MAX_SEQUENCE
		sub.SequenceNumSettings.Min = 1
		seqJSON, _ = json.Marshal(sub.SequenceNumSettings)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO subscribers (subscriber_id, name, subscriber_type, is_active, email, sequence_num_settings, critical_errors, global_filters, codes, destinations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, sub.SubscriberID, sub.Name, sub.SubscriberType, sub.IsActive, sub.Email, seqJSON, criticalJSON, globalJSON, sub.Codes, destJSON, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.Subscriber{}, apierror.NewAPIError(apierror.ErrConflict, "Subscriber with this ID already exists", err)
		}
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create subscriber", err)
	}

	for _, productID := range sub.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriber_products (subscriber_id, product_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, sub.SubscriberID, productID)
		if err != nil {
			return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInvalidInput, "Failed to attach product to subscriber", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Subscriber{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit subscriber", err)
	}

	return sub, nil
}

const subscriberColumns = `
	s.subscriber_id, s.name, s.subscriber_type, s.is_active, s.email,
	s.sequence_num_settings, s.critical_errors, s.global_filters, s.codes,
	s.destinations, s.last_closed, s.created_at, s.updated_at,
	COALESCE(array_agg(sp.product_id) FILTER (WHERE sp.product_id IS NOT NULL), '{}')`

func scanSubscriber(rows interface {
	Scan(dest ...interface{}) error
}) (model.Subscriber, error) {
	var sub model.Subscriber
	var email sql.NullString
	var seqJSON, criticalJSON, globalJSON, destJSON, lastClosedJSON []byte
	var products pq.StringArray

	err := rows.Scan(&sub.SubscriberID, &sub.Name, &sub.SubscriberType, &sub.IsActive, &email,
		&seqJSON, &criticalJSON, &globalJSON, &sub.Codes,
		&destJSON, &lastClosedJSON, &sub.CreatedAt, &sub.UpdatedAt, &products)
	if err != nil {
		return sub, err
	}

	sub.Email = email.String
	if len(seqJSON) > 0 {
		if err := json.Unmarshal(seqJSON, &sub.SequenceNumSettings); err != nil {
			return sub, err
		}
	}
	if len(criticalJSON) > 0 {
		if err := json.Unmarshal(criticalJSON, &sub.CriticalErrors); err != nil {
			return sub, err
		}
	}
	if len(globalJSON) > 0 {
		if err := json.Unmarshal(globalJSON, &sub.GlobalFilters); err != nil {
			return sub, err
		}
	}
	if len(destJSON) > 0 {
		if err := json.Unmarshal(destJSON, &sub.Destinations); err != nil {
			return sub, err
		}
	}
	if len(lastClosedJSON) > 0 {
		if err := json.Unmarshal(lastClosedJSON, &sub.LastClosed); err != nil {
			return sub, err
		}
	}
	sub.Products = products
	return sub, nil
}

func (d Datasource) GetSubscriberByID(ctx context.Context, id string) (*model.Subscriber, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers s
		LEFT JOIN subscriber_products sp ON sp.subscriber_id = s.subscriber_id
		WHERE s.subscriber_id = $1
		GROUP BY s.id
	`, id)

	sub, err := scanSubscriber(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Subscriber not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve subscriber", err)
	}
	return &sub, nil
}

func (d Datasource) GetSubscribersByIDs(ctx context.Context, ids []string) ([]model.Subscriber, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers s
		LEFT JOIN subscriber_products sp ON sp.subscriber_id = s.subscriber_id
		WHERE s.subscriber_id = ANY($1)
		GROUP BY s.id
	`, pq.Array(ids))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve subscribers", err)
	}
	defer rows.Close()
	return collectSubscribers(rows)
}

func (d Datasource) GetActiveSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers s
		LEFT JOIN subscriber_products sp ON sp.subscriber_id = s.subscriber_id
		WHERE s.is_active = TRUE
		GROUP BY s.id
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve active subscribers", err)
	}
	defer rows.Close()
	return collectSubscribers(rows)
}

func (d Datasource) GetAllSubscribers(ctx context.Context, limit, offset int) ([]model.Subscriber, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subscribers s
		LEFT JOIN subscriber_products sp ON sp.subscriber_id = s.subscriber_id
		GROUP BY s.id
		ORDER BY s.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve subscribers", err)
	}
	defer rows.Close()
	return collectSubscribers(rows)
}

func collectSubscribers(rows *sql.Rows) ([]model.Subscriber, error) {
	subscribers := []model.Subscriber{}
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan subscriber data", err)
		}
		subscribers = append(subscribers, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over subscribers", err)
	}
	return subscribers, nil
}

func (d Datasource) UpdateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	seqJSON, err := json.Marshal(sub.SequenceNumSettings)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal sequence settings", err)
	}
	criticalJSON, err := json.Marshal(sub.CriticalErrors)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal critical errors", err)
	}
	globalJSON, err := json.Marshal(sub.GlobalFilters)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal global filters", err)
	}
	destJSON, err := json.Marshal(sub.Destinations)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal destinations", err)
	}

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE subscribers
		SET name = $2, subscriber_type = $3, is_active = $4, email = $5,
			sequence_num_settings = $6, critical_errors = $7, global_filters = $8,
			codes = $9, destinations = $10, updated_at = NOW()
		WHERE subscriber_id = $1
	`, sub.SubscriberID, sub.Name, sub.SubscriberType, sub.IsActive, sub.Email,
		seqJSON, criticalJSON, globalJSON, sub.Codes, destJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update subscriber", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Subscriber not found", sql.ErrNoRows)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM subscriber_products WHERE subscriber_id = $1`, sub.SubscriberID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to refresh subscriber products", err)
	}
	for _, productID := range sub.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO subscriber_products (subscriber_id, product_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, sub.SubscriberID, productID)
		if err != nil {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "Failed to attach product to subscriber", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit subscriber update", err)
	}
	return nil
}

// DeactivateSubscriber flips the subscriber inactive and records why. Called
// when a transmission fails with an error code the subscriber marks critical.
func (d Datasource) DeactivateSubscriber(ctx context.Context, id string, reason string) error {
	lastClosed, err := json.Marshal(model.LastClosed{ClosedAt: time.Now(), Message: reason})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal close reason", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE subscribers
		SET is_active = FALSE, last_closed = $2, updated_at = NOW()
		WHERE subscriber_id = $1
	`, id, lastClosed)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to deactivate subscriber", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read deactivation result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Subscriber not found", sql.ErrNoRows)
	}
	return nil
}

// NextSequenceNumber allocates the next published sequence number for a
// subscriber atomically, wrapping back to min once max is passed.
func (d Datasource) NextSequenceNumber(ctx context.Context, subscriberID string, min, max int) (int, error) {
	if max <= 0 {
		max = config.DEFAULT_MAX_SEQUENCE
	}
	if min <= 0 {
		min = 1
	}

	var seq int
	err := d.Conn.QueryRowContext(ctx, `
		INSERT INTO subscriber_sequences (subscriber_id, seq_num)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id) DO UPDATE
		SET seq_num = CASE WHEN subscriber_sequences.seq_num + 1 > $3 THEN $2 ELSE subscriber_sequences.seq_num + 1 END
		RETURNING seq_num
	`, subscriberID, min, max).Scan(&seq)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to allocate sequence number", err)
	}
	return seq, nil
}
