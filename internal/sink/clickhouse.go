// Copyright (C) 2026, Aletheia Ads Ltd. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sink stores transparency rows in ClickHouse and reads them
// back for verification. The write side implements the pipeline's Sink
// interface; the read side implements the verifier's row store.
package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/aletheia-ads/transparency/internal/record"
)

// Options configures the ClickHouse connection.
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
}

// Client wraps a ClickHouse native-protocol connection.
type Client struct {
	conn driver.Conn
	log  *zap.Logger
}

// Open connects and pings ClickHouse.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, err
	}
	log.Info("connected to clickhouse", zap.String("addr", opts.Addr))
	return &Client{conn: conn, log: log}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Bootstrap creates the transparency tables if they do not exist.
// The timestamp column is a String: the signature covers the exact
// byte sequence written at observation time, and a DateTime column
// would reformat it on read.
func (c *Client) Bootstrap(ctx context.Context) error {
	auctionsSQL := `
	CREATE TABLE IF NOT EXISTS auctions (
		auction_id String,
		timestamp String,
		publisher_id String,
		app_or_site_id String,
		placement_id String,
		surface_type String,
		device_os String,
		device_geo String,
		att_status String,
		tc_string_sha256 String,
		winner_source String,
		winner_bid_ecpm Float64,
		winner_gross_price Float64,
		winner_currency String,
		winner_reason String,
		aletheia_fee_bp Int32,
		sample_bps Int32,
		effective_publisher_share Float64,
		integrity_algo String,
		integrity_key_id String,
		integrity_signature String,
		date Date MATERIALIZED toDate(parseDateTimeBestEffort(timestamp))
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(date)
	ORDER BY (publisher_id, auction_id)
	`
	if err := c.conn.Exec(ctx, auctionsSQL); err != nil {
		return fmt.Errorf("create auctions table: %w", err)
	}

	candidatesSQL := `
	CREATE TABLE IF NOT EXISTS auction_candidates (
		auction_id String,
		seq UInt16,
		source String,
		bid_ecpm Float64,
		currency String,
		response_time_ms Int64,
		status String,
		metadata_hash String
	) ENGINE = MergeTree()
	ORDER BY (auction_id, seq)
	`
	if err := c.conn.Exec(ctx, candidatesSQL); err != nil {
		return fmt.Errorf("create auction_candidates table: %w", err)
	}

	c.log.Info("clickhouse schema ready")
	return nil
}

// Insert appends rows to the named table. Rows must be homogeneous:
// record.AuctionRow for the auctions table, record.CandidateRow for
// the candidates table.
func (c *Client) Insert(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return err
	}
	for _, r := range rows {
		switch row := r.(type) {
		case record.AuctionRow:
			err = batch.Append(
				row.AuctionID,
				row.Timestamp,
				row.PublisherID,
				row.AppOrSiteID,
				row.PlacementID,
				row.SurfaceType,
				row.DeviceOS,
				row.DeviceGeo,
				row.ATTStatus,
				row.TCStringSHA256,
				row.WinnerSource,
				row.WinnerBidECPM,
				row.WinnerGrossPrice,
				row.WinnerCurrency,
				row.WinnerReason,
				row.FeeBp,
				row.SampleBps,
				row.EffectivePublisherShare,
				row.IntegrityAlgo,
				row.IntegrityKeyID,
				row.IntegritySignature,
			)
		case record.CandidateRow:
			err = batch.Append(
				row.AuctionID,
				row.Seq,
				row.Source,
				row.BidECPM,
				row.Currency,
				row.ResponseTimeMs,
				row.Status,
				row.MetadataHash,
			)
		default:
			return fmt.Errorf("unsupported row type %T for table %s", r, table)
		}
		if err != nil {
			return err
		}
	}
	return batch.Send()
}

// Auction loads one auction row by id. Returns record.ErrNotFound when
// the id has no record.
func (c *Client) Auction(ctx context.Context, auctionID string) (record.AuctionRow, error) {
	query := `
		SELECT auction_id, timestamp, publisher_id, app_or_site_id, placement_id,
		       surface_type, device_os, device_geo, att_status, tc_string_sha256,
		       winner_source, winner_bid_ecpm, winner_gross_price, winner_currency,
		       winner_reason, aletheia_fee_bp, sample_bps, effective_publisher_share,
		       integrity_algo, integrity_key_id, integrity_signature
		FROM auctions
		WHERE auction_id = ?
		LIMIT 1
	`
	rows, err := c.conn.Query(ctx, query, auctionID)
	if err != nil {
		return record.AuctionRow{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		return record.AuctionRow{}, record.ErrNotFound
	}

	var row record.AuctionRow
	if err := rows.Scan(
		&row.AuctionID,
		&row.Timestamp,
		&row.PublisherID,
		&row.AppOrSiteID,
		&row.PlacementID,
		&row.SurfaceType,
		&row.DeviceOS,
		&row.DeviceGeo,
		&row.ATTStatus,
		&row.TCStringSHA256,
		&row.WinnerSource,
		&row.WinnerBidECPM,
		&row.WinnerGrossPrice,
		&row.WinnerCurrency,
		&row.WinnerReason,
		&row.FeeBp,
		&row.SampleBps,
		&row.EffectivePublisherShare,
		&row.IntegrityAlgo,
		&row.IntegrityKeyID,
		&row.IntegritySignature,
	); err != nil {
		return record.AuctionRow{}, err
	}
	return row, nil
}

// Candidates loads the candidate rows of an auction in insertion order.
func (c *Client) Candidates(ctx context.Context, auctionID string) ([]record.CandidateRow, error) {
	query := `
		SELECT auction_id, seq, source, bid_ecpm, currency, response_time_ms,
		       status, metadata_hash
		FROM auction_candidates
		WHERE auction_id = ?
		ORDER BY seq
	`
	rows, err := c.conn.Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []record.CandidateRow
	for rows.Next() {
		var row record.CandidateRow
		if err := rows.Scan(
			&row.AuctionID,
			&row.Seq,
			&row.Source,
			&row.BidECPM,
			&row.Currency,
			&row.ResponseTimeMs,
			&row.Status,
			&row.MetadataHash,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
