// Package observability decorates the catalog ports with tracing,
// logging, and metrics.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	catalogdomain "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/domain"
	catalogports "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/ports"
)

const tracerName = "github.com/maiphun1412/thietbi-dientu-backend/internal/domains/catalog/adapters/observability"

// Ledger decorates a product reader and inventory ledger.
type Ledger struct {
	products catalogports.ProductReader
	ledger   catalogports.InventoryLedger
	tracer   trace.Tracer
	logger   *slog.Logger
	metrics  ledgerMetrics
}

type Option func(*Ledger)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(l *Ledger) {
		l.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(l *Ledger) {
		l.metrics = newLedgerMetrics(m)
	}
}

// New wraps the catalog ports.
func New(products catalogports.ProductReader, ledger catalogports.InventoryLedger, opts ...Option) *Ledger {
	l := &Ledger{
		products: products,
		ledger:   ledger,
		tracer:   nooptrace.NewTracerProvider().Tracer(tracerName),
		metrics:  newLedgerMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	if l.tracer == nil {
		l.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return l
}

func (l *Ledger) GetProduct(ctx context.Context, id int64) (*catalogdomain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "Catalog.GetProduct",
		trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := l.products.GetProduct(ctx, id)
	if err != nil {
		return nil, l.handleError(ctx, span, err, "failed to load product", slog.Int64("product.id", id))
	}
	span.SetAttributes(attribute.Int("product.variant_count", len(product.Variants)))
	return product, nil
}

func (l *Ledger) TryDecrement(ctx context.Context, productID int64, optionID *int64, qty int64) error {
	ctx, span := l.tracer.Start(ctx, "Catalog.TryDecrement", trace.WithAttributes(skuAttributes(productID, optionID, qty)...))
	defer span.End()

	if err := l.ledger.TryDecrement(ctx, productID, optionID, qty); err != nil {
		l.metrics.recordReservation(ctx, "rejected")
		return l.handleError(ctx, span, err, "stock reservation rejected", slog.Int64("product.id", productID))
	}
	l.metrics.recordReservation(ctx, "reserved")
	l.logInfo(ctx, "stock reserved", slog.Int64("product.id", productID), slog.Int64("qty", qty))
	return nil
}

func (l *Ledger) Increment(ctx context.Context, productID int64, optionID *int64, qty int64) error {
	ctx, span := l.tracer.Start(ctx, "Catalog.Increment", trace.WithAttributes(skuAttributes(productID, optionID, qty)...))
	defer span.End()

	if err := l.ledger.Increment(ctx, productID, optionID, qty); err != nil {
		return l.handleError(ctx, span, err, "stock restoration failed", slog.Int64("product.id", productID))
	}
	l.metrics.recordReservation(ctx, "restored")
	l.logInfo(ctx, "stock restored", slog.Int64("product.id", productID), slog.Int64("qty", qty))
	return nil
}

func (l *Ledger) AddSold(ctx context.Context, productID int64, qty int64) error {
	ctx, span := l.tracer.Start(ctx, "Catalog.AddSold",
		trace.WithAttributes(attribute.Int64("product.id", productID), attribute.Int64("qty", qty)))
	defer span.End()

	if err := l.ledger.AddSold(ctx, productID, qty); err != nil {
		return l.handleError(ctx, span, err, "failed to credit units sold", slog.Int64("product.id", productID))
	}
	l.metrics.recordSold(ctx, qty)
	return nil
}

func skuAttributes(productID int64, optionID *int64, qty int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int64("product.id", productID),
		attribute.Int64("qty", qty),
	}
	if optionID != nil {
		attrs = append(attrs, attribute.Int64("option.id", *optionID))
	}
	return attrs
}

func (l *Ledger) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if l.logger == nil {
		return
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (l *Ledger) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if l.logger != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		l.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
	}
	return err
}

type ledgerMetrics struct {
	reservations metric.Int64Counter
	unitsSold    metric.Int64Counter
}

func newLedgerMetrics(m metric.Meter) ledgerMetrics {
	if m == nil {
		return ledgerMetrics{}
	}
	reservations, _ := m.Int64Counter("catalog.ledger.reservations", metric.WithDescription("Stock reservation outcomes"))
	unitsSold, _ := m.Int64Counter("catalog.ledger.units_sold", metric.WithDescription("Units credited as sold"))
	return ledgerMetrics{reservations: reservations, unitsSold: unitsSold}
}

func (m ledgerMetrics) recordReservation(ctx context.Context, outcome string) {
	if m.reservations != nil {
		m.reservations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m ledgerMetrics) recordSold(ctx context.Context, qty int64) {
	if m.unitsSold != nil {
		m.unitsSold.Add(ctx, qty)
	}
}

var (
	_ catalogports.ProductReader   = (*Ledger)(nil)
	_ catalogports.InventoryLedger = (*Ledger)(nil)
)
