package db

import (
	"context"
	"fmt"
	"net"
	"sync"

	"cloud.google.com/go/cloudsqlconn"
)

// CloudSQLDialer dials a Cloud SQL instance through the Cloud SQL Go Connector
// with IAM database authentication. The underlying dialer is created on first
// use and shared by every pool the connector opens, so reconnects reuse its
// cached certificates.
type CloudSQLDialer struct {
	instance string

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

// NewCloudSQLDialer creates a dialer for instance ("project:region:instance").
func NewCloudSQLDialer(instance string) *CloudSQLDialer {
	return &CloudSQLDialer{instance: instance}
}

// Dial ignores addr and connects to the configured instance.
// It matches pgconn.DialFunc.
func (d *CloudSQLDialer) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	dialer, err := d.get(ctx)
	if err != nil {
		return nil, err
	}
	return dialer.Dial(ctx, d.instance)
}

func (d *CloudSQLDialer) get(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialer != nil {
		return d.dialer, nil
	}
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud SQL dialer: %w", err)
	}
	d.dialer = dialer
	return dialer, nil
}

// Close releases the Cloud SQL dialer. Call it after every pool using it is closed.
func (d *CloudSQLDialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dialer == nil {
		return nil
	}
	err := d.dialer.Close()
	d.dialer = nil
	return err
}

func (d *CloudSQLDialer) String() string {
	return fmt.Sprintf("CloudSQL(instance=%s)", d.instance)
}
