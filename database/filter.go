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

func (d Datasource) CreateContentFilter(ctx context.Context, f model.ContentFilter) (model.ContentFilter, error) {
	statementsJSON, err := json.Marshal(f.Statements)
	if err != nil {
		return model.ContentFilter{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal filter statements", err)
	}

	f.FilterID = GenerateUUIDWithSuffix("flt")
	f.UpdatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO content_filters (filter_id, name, is_global, statements, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, f.FilterID, f.Name, f.IsGlobal, statementsJSON, f.UpdatedAt)
	if err != nil {
		pqErr, ok := err.(*pq.Error)
		if ok && pqErr.Code.Name() == "unique_violation" {
			return model.ContentFilter{}, apierror.NewAPIError(apierror.ErrConflict, "Content filter with this ID already exists", err)
		}
		return model.ContentFilter{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create content filter", err)
	}
	return f, nil
}

func (d Datasource) GetContentFilterByID(ctx context.Context, id string) (*model.ContentFilter, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT filter_id, name, is_global, statements, updated_at
		FROM content_filters
		WHERE filter_id = $1
	`, id)

	f := model.ContentFilter{}
	var statementsJSON []byte
	err := row.Scan(&f.FilterID, &f.Name, &f.IsGlobal, &statementsJSON, &f.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Content filter not found", err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve content filter", err)
	}
	if err := json.Unmarshal(statementsJSON, &f.Statements); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal filter statements", err)
	}
	return &f, nil
}

func (d Datasource) GetAllContentFilters(ctx context.Context) ([]model.ContentFilter, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT filter_id, name, is_global, statements, updated_at
		FROM content_filters
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve content filters", err)
	}
	defer rows.Close()

	filters := []model.ContentFilter{}
	for rows.Next() {
		f := model.ContentFilter{}
		var statementsJSON []byte
		err = rows.Scan(&f.FilterID, &f.Name, &f.IsGlobal, &statementsJSON, &f.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan content filter data", err)
		}
		if err := json.Unmarshal(statementsJSON, &f.Statements); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal filter statements", err)
		}
		filters = append(filters, f)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over content filters", err)
	}
	return filters, nil
}

func (d Datasource) UpdateContentFilter(ctx context.Context, f *model.ContentFilter) error {
	statementsJSON, err := json.Marshal(f.Statements)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal filter statements", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE content_filters
		SET name = $2, is_global = $3, statements = $4, updated_at = NOW()
		WHERE filter_id = $1
	`, f.FilterID, f.Name, f.IsGlobal, statementsJSON)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update content filter", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Content filter not found", sql.ErrNoRows)
	}
	return nil
}

func (d Datasource) DeleteContentFilter(ctx context.Context, id string) error {
	var referenced int
	err := d.Conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE content_filter->>'filter_id' = $1
	`, id).Scan(&referenced)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check filter usage", err)
	}
	if referenced > 0 {
		return apierror.NewAPIError(apierror.ErrConflict, "Content filter is referenced by products", nil)
	}

	result, err := d.Conn.ExecContext(ctx, `DELETE FROM content_filters WHERE filter_id = $1`, id)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete content filter", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read delete result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, "Content filter not found", sql.ErrNoRows)
	}
	return nil
}

func (d Datasource) CreateFilterCondition(ctx context.Context, c model.FilterCondition) (model.FilterCondition, error) {
	valueJSON, err := json.Marshal(c.Value)
	if err != nil {
		return model.FilterCondition{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal condition value", err)
	}

	c.ConditionID = GenerateUUIDWithSuffix("fc")
	c.UpdatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO filter_conditions (condition_id, name, field, operator, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ConditionID, c.Name, c.Field, c.Operator, valueJSON, c.UpdatedAt)
	if err != nil {
		return model.FilterCondition{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create filter condition", err)
	}
	return c, nil
}

func (d Datasource) GetAllFilterConditions(ctx context.Context) ([]model.FilterCondition, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT condition_id, name, field, operator, value, updated_at
		FROM filter_conditions
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve filter conditions", err)
	}
	defer rows.Close()

	conditions := []model.FilterCondition{}
	for rows.Next() {
		c := model.FilterCondition{}
		var name sql.NullString
		var valueJSON []byte
		err = rows.Scan(&c.ConditionID, &name, &c.Field, &c.Operator, &valueJSON, &c.UpdatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan filter condition data", err)
		}
		c.Name = name.String
		if err := json.Unmarshal(valueJSON, &c.Value); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal condition value", err)
		}
		conditions = append(conditions, c)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over filter conditions", err)
	}
	return conditions, nil
}

// FiltersLastModified returns the newest updated_at across filters and
// conditions. The in-process filter cache refreshes only when this moves.
func (d Datasource) FiltersLastModified(ctx context.Context) (time.Time, error) {
	var watermark sql.NullTime
	err := d.Conn.QueryRowContext(ctx, `
		SELECT GREATEST(
			COALESCE((SELECT MAX(updated_at) FROM content_filters), 'epoch'::timestamp),
			COALESCE((SELECT MAX(updated_at) FROM filter_conditions), 'epoch'::timestamp)
		)
	`).Scan(&watermark)
	if err != nil {
		return time.Time{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read filter watermark", err)
	}
	return watermark.Time, nil
}
