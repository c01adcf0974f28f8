package metrics

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	appconfig "oiflow/config"
	"oiflow/logger"
)

// maxDatumsPerRequest is the PutMetricData batch limit.
const maxDatumsPerRequest = 1000

// metricPutter is the part of the CloudWatch client the publisher needs.
type metricPutter interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

type publisher struct {
	mu        sync.Mutex
	client    metricPutter
	namespace string
	pending   []cwtypes.MetricDatum
	handler   MetricHandlerID
}

var cw = &publisher{}

// InitCloudWatch registers CloudWatch as a metric handler. Metrics emitted
// afterwards are buffered and sent by Flush or CloseCloudWatch.
func InitCloudWatch(ctx context.Context, cfg appconfig.CloudWatchConfig) error {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("load aws configuration: %w", err)
	}

	useCloudWatch(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace)

	logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{
		"region":    awsCfg.Region,
		"namespace": cfg.Namespace,
	}).Info("initialized CloudWatch client")
	return nil
}

// CloseCloudWatch publishes what is queued and unregisters the handler.
func CloseCloudWatch(ctx context.Context) error {
	err := Flush(ctx)
	useCloudWatch(nil, "")
	return err
}

// useCloudWatch swaps the publisher's client. A nil client unregisters it.
func useCloudWatch(client metricPutter, namespace string) {
	cw.mu.Lock()
	previous := cw.handler
	cw.client = client
	cw.namespace = namespace
	cw.pending = nil
	cw.handler = 0
	cw.mu.Unlock()

	UnregisterMetricHandler(previous)
	if client == nil {
		return
	}
	id := RegisterMetricHandler(cw.handle)
	cw.mu.Lock()
	cw.handler = id
	cw.mu.Unlock()
}

// EmitMetric logs the metric and hands it to every registered handler.
func EmitMetric(log *logger.Log, component, name string, value interface{}, metricType string, fields logger.Fields) {
	record(log, component, name, value, metricType, fields)
}

// handle queues numeric metrics; anything else is only logged.
func (p *publisher) handle(m Metric) {
	if v, ok := toFloat64(m.Value); ok {
		p.enqueue(m, v)
	}
}

func (p *publisher) enqueue(m Metric, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return
	}

	unit := cwtypes.StandardUnitCount
	if raw, ok := m.Fields["unit"].(string); ok {
		unit = metricUnitFromString(raw)
	}

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(m.Component)}}
	for k, v := range m.Fields {
		if k == "unit" || k == "run_id" {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(s)})
		}
	}

	p.pending = append(p.pending, cwtypes.MetricDatum{
		MetricName: aws.String(m.Name),
		Dimensions: dims,
		Timestamp:  aws.Time(m.Timestamp),
		Unit:       unit,
		Value:      aws.Float64(value),
	})
}

// Flush publishes every queued metric. It is a no-op when CloudWatch was
// never initialised.
func Flush(ctx context.Context) error {
	cw.mu.Lock()
	client, namespace, data := cw.client, cw.namespace, cw.pending
	cw.pending = nil
	cw.mu.Unlock()

	if client == nil || len(data) == 0 {
		return nil
	}

	for start := 0; start < len(data); start += maxDatumsPerRequest {
		end := start + maxDatumsPerRequest
		if end > len(data) {
			end = len(data)
		}
		if _, err := client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
			Namespace:  aws.String(namespace),
			MetricData: data[start:end],
		}); err != nil {
			return fmt.Errorf("publish cloudwatch metrics: %w", err)
		}
	}

	logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{
		"count": len(data),
	}).Debug("published metrics to CloudWatch")
	return nil
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func metricUnitFromString(unit string) cwtypes.StandardUnit {
	switch strings.ToLower(unit) {
	case "percent":
		return cwtypes.StandardUnitPercent
	case "seconds":
		return cwtypes.StandardUnitSeconds
	case "milliseconds":
		return cwtypes.StandardUnitMilliseconds
	default:
		return cwtypes.StandardUnitCount
	}
}
