package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// Source entities are written by the ingestion side of the product. The
// pipeline only reads them; the Save methods exist for that side and for
// seeding.

var newsColumns = []string{"id", "title", "summary", "description", "content", "source", "published_at"}

func (s *Store) SaveNewsArticle(ctx context.Context, a NewsArticle) error {
	q, args, err := s.sb.Insert("news_articles").
		Columns(newsColumns...).
		Values(a.ID, a.Title, a.Summary, a.Description, a.Content, a.Source, formatTimePtr(a.PublishedAt)).
		Suffix(upsertSuffix("id", newsColumns)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) GetNewsArticle(ctx context.Context, id string) (NewsArticle, error) {
	q, args, err := s.sb.Select(newsColumns...).From("news_articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return NewsArticle{}, err
	}

	var a NewsArticle
	var published sql.NullString
	err = s.db.QueryRowContext(ctx, q, args...).Scan(&a.ID, &a.Title, &a.Summary, &a.Description, &a.Content, &a.Source, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return NewsArticle{}, ErrNotFound
	}
	if err != nil {
		return NewsArticle{}, err
	}
	if a.PublishedAt, err = parseTimePtr(published); err != nil {
		return NewsArticle{}, fmt.Errorf("parsing published_at: %w", err)
	}
	return a, nil
}

var billColumns = []string{
	"id", "congress", "bill_type", "bill_number", "title", "sponsor_name", "sponsor_party",
	"introduced_date", "latest_action_text", "latest_action_date", "policy_area", "full_text", "full_text_format",
}

// SaveBill upserts a bill and replaces its cosponsor list.
func (s *Store) SaveBill(ctx context.Context, b Bill) error {
	format := b.FullTextFormat
	if format == "" {
		format = "text"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning bill transaction: %w", err)
	}
	defer tx.Rollback()

	q, args, err := s.sb.Insert("bills").
		Columns(billColumns...).
		Values(b.ID, b.Congress, b.BillType, b.BillNumber, b.Title, b.SponsorName, b.SponsorParty,
			b.IntroducedDate, b.LatestActionText, b.LatestActionDate, b.PolicyArea, b.FullText, format).
		Suffix(upsertSuffix("id", billColumns)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("upserting bill: %w", err)
	}

	q, args, err = s.sb.Delete("bill_cosponsors").Where(sq.Eq{"bill_id": b.ID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("clearing cosponsors: %w", err)
	}

	if len(b.Cosponsors) > 0 {
		ins := s.sb.Insert("bill_cosponsors").Columns("bill_id", "position", "name", "party")
		for i, c := range b.Cosponsors {
			ins = ins.Values(b.ID, i, c.Name, c.Party)
		}
		q, args, err = ins.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("inserting cosponsors: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetBill(ctx context.Context, id string) (Bill, error) {
	q, args, err := s.sb.Select(billColumns...).From("bills").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return Bill{}, err
	}

	var b Bill
	var latest sql.NullString
	err = s.db.QueryRowContext(ctx, q, args...).Scan(
		&b.ID, &b.Congress, &b.BillType, &b.BillNumber, &b.Title, &b.SponsorName, &b.SponsorParty,
		&b.IntroducedDate, &latest, &b.LatestActionDate, &b.PolicyArea, &b.FullText, &b.FullTextFormat,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Bill{}, ErrNotFound
	}
	if err != nil {
		return Bill{}, err
	}
	if latest.Valid {
		b.LatestActionText = &latest.String
	}

	q, args, err = s.sb.Select("name", "party").From("bill_cosponsors").
		Where(sq.Eq{"bill_id": id}).OrderBy("position ASC").ToSql()
	if err != nil {
		return Bill{}, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return Bill{}, fmt.Errorf("loading cosponsors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Cosponsor
		if err := rows.Scan(&c.Name, &c.Party); err != nil {
			return Bill{}, err
		}
		b.Cosponsors = append(b.Cosponsors, c)
	}
	return b, rows.Err()
}

var stateBillColumns = []string{
	"id", "state", "session", "identifier", "title", "abstract", "subjects", "latest_action", "full_text", "full_text_format",
}

func (s *Store) SaveStateBill(ctx context.Context, b StateBill) error {
	subjects, err := encodeJSON(b.Subjects)
	if err != nil {
		return err
	}
	format := b.FullTextFormat
	if format == "" {
		format = "text"
	}
	q, args, err := s.sb.Insert("state_bills").
		Columns(stateBillColumns...).
		Values(b.ID, b.State, b.Session, b.Identifier, b.Title, b.Abstract, subjects, b.LatestAction, b.FullText, format).
		Suffix(upsertSuffix("id", stateBillColumns)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q, args...)
	return err
}

func (s *Store) GetStateBill(ctx context.Context, id string) (StateBill, error) {
	q, args, err := s.sb.Select(stateBillColumns...).From("state_bills").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return StateBill{}, err
	}

	var b StateBill
	var subjects string
	var latest sql.NullString
	err = s.db.QueryRowContext(ctx, q, args...).Scan(
		&b.ID, &b.State, &b.Session, &b.Identifier, &b.Title, &b.Abstract, &subjects, &latest, &b.FullText, &b.FullTextFormat,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return StateBill{}, ErrNotFound
	}
	if err != nil {
		return StateBill{}, err
	}
	if latest.Valid {
		b.LatestAction = &latest.String
	}
	if b.Subjects, err = decodeList(subjects); err != nil {
		return StateBill{}, fmt.Errorf("decoding subjects: %w", err)
	}
	return b, nil
}
