package alerts

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub/pstest"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPubSubPublisher_PublishesJSON(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	publisher, err := NewPubSubPublisher(ctx, "test-project", "low-stock", zap.NewNop(), option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("NewPubSubPublisher: %v", err)
	}
	if _, err := publisher.client.CreateTopic(ctx, "low-stock"); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	alert := NewLowStockAlert("a1", "Hammer", 3, 10)
	if err := publisher.PublishLowStock(ctx, alert); err != nil {
		t.Fatalf("PublishLowStock: %v", err)
	}
	publisher.topic.Stop()

	msgs := srv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	var got LowStockAlert
	if err := json.Unmarshal(msgs[0].Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ItemID != "a1" || got.Quantity != 3 || got.Threshold != 10 || got.AlertID == "" {
		t.Errorf("unexpected alert %+v", got)
	}
	if msgs[0].Attributes["type"] != "low_stock" {
		t.Errorf("attributes = %v", msgs[0].Attributes)
	}
}

func TestPubSubPublisher_MissingTopic(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	publisher, err := NewPubSubPublisher(ctx, "test-project", "absent", zap.NewNop(), option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}
	if err := publisher.PublishLowStock(ctx, NewLowStockAlert("a1", "Hammer", 1, 10)); err == nil {
		t.Fatal("expected an error for a missing topic")
	}
}

func TestLogPublisher(t *testing.T) {
	if err := (LogPublisher{Logger: zap.NewNop()}).PublishLowStock(context.Background(), NewLowStockAlert("", "Saw", 0, 10)); err != nil {
		t.Fatal(err)
	}
}
