package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"pharmacy-backend/internal/domains/voucher/model"
)

// PostgresRepository implements VoucherRepository with PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance
func NewPostgresRepository(db *pgxpool.Pool) VoucherRepository {
	return &PostgresRepository{db: db}
}

const voucherColumns = `
	id, code, name, description,
	discount_type, discount_value, max_discount,
	min_spend, usage_limit, usage_limit_per_user, usage_count,
	start_date, end_date, status,
	applicable_category_ids, applicable_product_ids, first_order_only,
	created_at, updated_at
`

const userVoucherColumns = `
	id, user_id, voucher_id, status, times_used,
	used_at, discount_amount, order_id, claimed_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row rowScanner) (*model.Voucher, error) {
	var v model.Voucher
	err := row.Scan(
		&v.ID,
		&v.Code,
		&v.Name,
		&v.Description,
		&v.DiscountType,
		&v.DiscountValue,
		&v.MaxDiscount,
		&v.MinSpend,
		&v.UsageLimit,
		&v.UsageLimitPerUser,
		&v.UsageCount,
		&v.StartDate,
		&v.EndDate,
		&v.Status,
		&v.ApplicableCategoryIDs,
		&v.ApplicableProductIDs,
		&v.FirstOrderOnly,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func scanUserVoucher(row rowScanner) (*model.UserVoucher, error) {
	var uv model.UserVoucher
	err := row.Scan(
		&uv.ID,
		&uv.UserID,
		&uv.VoucherID,
		&uv.Status,
		&uv.TimesUsed,
		&uv.UsedAt,
		&uv.DiscountAmount,
		&uv.OrderID,
		&uv.ClaimedAt,
		&uv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &uv, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// -------------------------------------------------------------------
// READ OPERATIONS
// -------------------------------------------------------------------

// FindByCode looks a voucher up by code, case-insensitive.
func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*model.Voucher, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM vouchers
		WHERE LOWER(code) = LOWER($1)
	`, voucherColumns)

	v, err := scanVoucher(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("find voucher by code: %w", err)
	}

	return v, nil
}

// FindByID looks a voucher up by ID.
func (r *PostgresRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Voucher, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM vouchers
		WHERE id = $1
	`, voucherColumns)

	v, err := scanVoucher(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("find voucher by id: %w", err)
	}

	return v, nil
}

// FindUserVoucher loads the ledger row for (voucher, user).
func (r *PostgresRepository) FindUserVoucher(ctx context.Context, voucherID, userID uuid.UUID) (*model.UserVoucher, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM user_vouchers
		WHERE voucher_id = $1 AND user_id = $2
	`, userVoucherColumns)

	uv, err := scanUserVoucher(r.db.QueryRow(ctx, query, voucherID, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrUserVoucherNotFound
		}
		return nil, fmt.Errorf("find user voucher: %w", err)
	}

	return uv, nil
}

// ListActive returns ACTIVE vouchers inside their window, best discount
// first (for the public listing).
func (r *PostgresRepository) ListActive(ctx context.Context, page, limit int) ([]*model.Voucher, int, error) {
	offset := (page - 1) * limit

	query := fmt.Sprintf(`
		SELECT %s
		FROM vouchers
		WHERE status = 'ACTIVE'
		  AND start_date <= NOW()
		  AND end_date >= NOW()
		ORDER BY discount_value DESC
		LIMIT $1 OFFSET $2
	`, voucherColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list active vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []*model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list active vouchers: %w", err)
	}

	countQuery := `
		SELECT COUNT(*)
		FROM vouchers
		WHERE status = 'ACTIVE'
		  AND start_date <= NOW()
		  AND end_date >= NOW()
	`

	var total int
	if err := r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count active vouchers: %w", err)
	}

	return vouchers, total, nil
}

// ListUserVouchers returns the user's claimed vouchers, newest claim
// first, each paired with its voucher definition.
func (r *PostgresRepository) ListUserVouchers(ctx context.Context, userID uuid.UUID) ([]*model.UserVoucher, []*model.Voucher, error) {
	query := `
		SELECT
			uv.id, uv.user_id, uv.voucher_id, uv.status, uv.times_used,
			uv.used_at, uv.discount_amount, uv.order_id, uv.claimed_at, uv.updated_at,
			v.id, v.code, v.name, v.description,
			v.discount_type, v.discount_value, v.max_discount,
			v.min_spend, v.usage_limit, v.usage_limit_per_user, v.usage_count,
			v.start_date, v.end_date, v.status,
			v.applicable_category_ids, v.applicable_product_ids, v.first_order_only,
			v.created_at, v.updated_at
		FROM user_vouchers uv
		INNER JOIN vouchers v ON v.id = uv.voucher_id
		WHERE uv.user_id = $1
		ORDER BY uv.claimed_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list user vouchers: %w", err)
	}
	defer rows.Close()

	var userVouchers []*model.UserVoucher
	var vouchers []*model.Voucher
	for rows.Next() {
		var uv model.UserVoucher
		var v model.Voucher
		err := rows.Scan(
			&uv.ID, &uv.UserID, &uv.VoucherID, &uv.Status, &uv.TimesUsed,
			&uv.UsedAt, &uv.DiscountAmount, &uv.OrderID, &uv.ClaimedAt, &uv.UpdatedAt,
			&v.ID, &v.Code, &v.Name, &v.Description,
			&v.DiscountType, &v.DiscountValue, &v.MaxDiscount,
			&v.MinSpend, &v.UsageLimit, &v.UsageLimitPerUser, &v.UsageCount,
			&v.StartDate, &v.EndDate, &v.Status,
			&v.ApplicableCategoryIDs, &v.ApplicableProductIDs, &v.FirstOrderOnly,
			&v.CreatedAt, &v.UpdatedAt,
		)
		if err != nil {
			return nil, nil, err
		}
		userVouchers = append(userVouchers, &uv)
		vouchers = append(vouchers, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("list user vouchers: %w", err)
	}

	return userVouchers, vouchers, nil
}

// ListAdmin returns vouchers with status/type filters, code/name search
// and configurable ordering (admin listing).
func (r *PostgresRepository) ListAdmin(ctx context.Context, filter *model.ListVouchersFilter) ([]*model.Voucher, int, error) {
	offset := (filter.Page - 1) * filter.Limit

	whereClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Status != "" && filter.Status != "all" {
		whereClauses = append(whereClauses, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filter.Status)
		argIndex++
	}

	if filter.DiscountType != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("discount_type = $%d", argIndex))
		args = append(args, filter.DiscountType)
		argIndex++
	}

	if filter.Search != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(LOWER(code) LIKE $%d OR LOWER(name) LIKE $%d)",
			argIndex, argIndex,
		))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		argIndex++
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}

	orderBySQL := "ORDER BY created_at DESC"
	switch filter.Sort {
	case "created_at_desc":
		orderBySQL = "ORDER BY created_at DESC"
	case "end_date_asc":
		orderBySQL = "ORDER BY end_date ASC"
	case "usage_desc":
		orderBySQL = "ORDER BY usage_count DESC"
	case "name_asc":
		orderBySQL = "ORDER BY name ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM vouchers
		%s
		%s
		LIMIT $%d OFFSET $%d
	`, voucherColumns, whereSQL, orderBySQL, argIndex, argIndex+1)

	args = append(args, filter.Limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list admin vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []*model.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, err
		}
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list admin vouchers: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM vouchers %s", whereSQL)
	countArgs := args[:len(args)-2] // drop LIMIT and OFFSET

	var total int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin vouchers: %w", err)
	}

	return vouchers, total, nil
}

// CheckCodeExists reports whether a code is already taken.
//
// Params:
// - excludeID: skip this ID (used for updates)
func (r *PostgresRepository) CheckCodeExists(ctx context.Context, code string, excludeID *uuid.UUID) (bool, error) {
	query := "SELECT EXISTS(SELECT 1 FROM vouchers WHERE LOWER(code) = LOWER($1)"
	args := []interface{}{code}

	if excludeID != nil {
		query += " AND id != $2"
		args = append(args, *excludeID)
	}

	query += ")"

	var exists bool
	err := r.db.QueryRow(ctx, query, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code exists: %w", err)
	}

	return exists, nil
}

// -------------------------------------------------------------------
// WRITE OPERATIONS
// -------------------------------------------------------------------

// Create inserts a new voucher. Code is normalized to uppercase.
func (r *PostgresRepository) Create(ctx context.Context, v *model.Voucher) error {
	v.Code = strings.ToUpper(strings.TrimSpace(v.Code))
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	query := `
		INSERT INTO vouchers (
			id, code, name, description,
			discount_type, discount_value, max_discount,
			min_spend, usage_limit, usage_limit_per_user, usage_count,
			start_date, end_date, status,
			applicable_category_ids, applicable_product_ids, first_order_only,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			0, $11, $12, $13, $14, $15, $16, NOW(), NOW()
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		v.ID,
		v.Code,
		v.Name,
		v.Description,
		v.DiscountType,
		v.DiscountValue,
		v.MaxDiscount,
		v.MinSpend,
		v.UsageLimit,
		v.UsageLimitPerUser,
		v.StartDate,
		v.EndDate,
		v.Status,
		pq.Array(v.ApplicableCategoryIDs),
		pq.Array(v.ApplicableProductIDs),
		v.FirstOrderOnly,
	).Scan(&v.CreatedAt, &v.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateCode
		}
		return fmt.Errorf("create voucher: %w", err)
	}

	v.UsageCount = 0

	return nil
}

// Update rewrites the mutable voucher fields. Counters are never
// touched here, only by RecordUsage.
func (r *PostgresRepository) Update(ctx context.Context, v *model.Voucher) error {
	query := `
		UPDATE vouchers
		SET
			name = $2,
			description = $3,
			max_discount = $4,
			min_spend = $5,
			usage_limit = $6,
			usage_limit_per_user = $7,
			start_date = $8,
			end_date = $9,
			status = $10,
			applicable_category_ids = $11,
			applicable_product_ids = $12,
			first_order_only = $13,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		v.ID,
		v.Name,
		v.Description,
		v.MaxDiscount,
		v.MinSpend,
		v.UsageLimit,
		v.UsageLimitPerUser,
		v.StartDate,
		v.EndDate,
		v.Status,
		pq.Array(v.ApplicableCategoryIDs),
		pq.Array(v.ApplicableProductIDs),
		v.FirstOrderOnly,
	).Scan(&v.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrVoucherNotFound
		}
		return fmt.Errorf("update voucher: %w", err)
	}

	return nil
}

// UpdateStatus sets the advisory status field.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.VoucherStatus) error {
	query := `
		UPDATE vouchers
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update voucher status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return model.ErrVoucherNotFound
	}

	return nil
}

// CreateUserVoucher inserts a claim row (times_used = 0). The unique
// (user_id, voucher_id) constraint turns a double claim into
// ErrDuplicateClaim.
func (r *PostgresRepository) CreateUserVoucher(ctx context.Context, uv *model.UserVoucher) error {
	if uv.ID == uuid.Nil {
		uv.ID = uuid.New()
	}
	if uv.Status == "" {
		uv.Status = model.UserVoucherStatusClaimed
	}

	query := `
		INSERT INTO user_vouchers (
			id, user_id, voucher_id, status, times_used,
			used_at, discount_amount, order_id, claimed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		RETURNING claimed_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		uv.ID,
		uv.UserID,
		uv.VoucherID,
		uv.Status,
		uv.TimesUsed,
		uv.UsedAt,
		uv.DiscountAmount,
		uv.OrderID,
	).Scan(&uv.ClaimedAt, &uv.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrDuplicateClaim
		}
		return fmt.Errorf("create user voucher: %w", err)
	}

	return nil
}

// -------------------------------------------------------------------
// USAGE COMMIT
// -------------------------------------------------------------------

// RecordUsage commits one successful application in a single
// transaction. Both counter updates are conditional increments, so two
// concurrent commits can never both take the last slot: the condition
// is evaluated against the locked row, and zero rows affected means
// the cap is gone, the whole transaction rolls back.
//
// Business Logic Flow:
// 1. Identified actor: conditional increment of the ledger row
//    (times_used < limit), or insert a fresh row with times_used = 1
//    when the user never claimed; an existing row at the limit fails
//    with ErrUserLimitReached.
// 2. Global conditional increment (usage_count < usage_limit), flipping
//    status to USED_UP in the same statement when the cap is reached;
//    zero rows affected fails with ErrVoucherUsedUp.
// 3. Commit. Ledger row and counters change together or not at all.
func (r *PostgresRepository) RecordUsage(ctx context.Context, rec *UsageRecord) (*model.UserVoucher, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin usage tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var userVoucher *model.UserVoucher

	if rec.UserID != nil {
		updateQuery := fmt.Sprintf(`
			UPDATE user_vouchers
			SET
				times_used = times_used + 1,
				used_at = NOW(),
				discount_amount = $4,
				order_id = $5,
				status = CASE
					WHEN times_used + 1 >= $3 THEN 'USED'
					ELSE status
				END,
				updated_at = NOW()
			WHERE voucher_id = $1 AND user_id = $2 AND times_used < $3
			RETURNING %s
		`, userVoucherColumns)

		userVoucher, err = scanUserVoucher(tx.QueryRow(ctx, updateQuery,
			rec.VoucherID,
			*rec.UserID,
			rec.UsageLimitPerUser,
			rec.DiscountAmount,
			rec.OrderID,
		))

		if err != nil && errors.Is(err, pgx.ErrNoRows) {
			// No updatable row: either the user never claimed, or the
			// row is at the per-user limit. The conditional insert
			// distinguishes the two.
			insertQuery := fmt.Sprintf(`
				INSERT INTO user_vouchers (
					id, user_id, voucher_id, status, times_used,
					used_at, discount_amount, order_id, claimed_at, updated_at
				) VALUES (
					$1, $2, $3,
					CASE WHEN $4 <= 1 THEN 'USED' ELSE 'CLAIMED' END,
					1, NOW(), $5, $6, NOW(), NOW()
				)
				ON CONFLICT (user_id, voucher_id) DO NOTHING
				RETURNING %s
			`, userVoucherColumns)

			userVoucher, err = scanUserVoucher(tx.QueryRow(ctx, insertQuery,
				uuid.New(),
				*rec.UserID,
				rec.VoucherID,
				rec.UsageLimitPerUser,
				rec.DiscountAmount,
				rec.OrderID,
			))

			if err != nil && errors.Is(err, pgx.ErrNoRows) {
				// Row exists and is out of uses
				return nil, model.ErrUserLimitReached
			}
		}
		if err != nil {
			return nil, fmt.Errorf("record user voucher usage: %w", err)
		}
	}

	// Global counter; the status flip is a best-effort cache of
	// validity, the WHERE condition is what enforces the cap.
	globalQuery := `
		UPDATE vouchers
		SET
			usage_count = usage_count + 1,
			status = CASE
				WHEN usage_limit IS NOT NULL AND usage_count + 1 >= usage_limit THEN 'USED_UP'
				ELSE status
			END,
			updated_at = NOW()
		WHERE id = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
	`

	result, err := tx.Exec(ctx, globalQuery, rec.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("increment voucher usage: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, model.ErrVoucherUsedUp
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit usage tx: %w", err)
	}

	return userVoucher, nil
}
