package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

const (
	defaultMySQLDSN  = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	defaultRedisAddr = "localhost:6379"
	stressUserID     = "stress-test-user"
	initialInventory = 20
	totalRequests    = 50
	queueSize        = 100
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()

	// Initialize MySQL
	db, err := sql.Open("mysql", getenv("MYSQL_DSN", defaultMySQLDSN))
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(totalRequests)
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: getenv("REDIS_ADDR", defaultRedisAddr)})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer rdb.Close()

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}

	// Clear previous test data
	if _, err := db.ExecContext(ctx, `DELETE FROM orders WHERE user_id = ?`, stressUserID); err != nil {
		log.Fatalf("failed to clear orders: %v", err)
	}

	product := &domain.Product{
		Name:      "stress-test-item-" + uuid.NewString()[:8],
		Price:     decimal.RequireFromString("19.99"),
		Inventory: initialInventory,
	}
	if err := mysqlAdapter.CreateProduct(ctx, product); err != nil {
		log.Fatalf("failed to create product: %v", err)
	}

	orderService := service.NewOrderService(mysqlAdapter, mysqlAdapter, redisAdapter, zap.NewNop(), queueSize)
	defer orderService.Close()

	// Drain the event queue in background
	go func() {
		for range orderService.GetEventQueue() {
		}
	}()

	// Counters
	var successCount, insufficientCount, otherCount atomic.Int32

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()
	runID := uuid.NewString()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			_, err := orderService.PlaceOrder(ctx, service.PlaceOrderInput{
				UserID: stressUserID,
				Items:  []domain.LineItem{{ProductID: product.ID, Quantity: 1}},
				ShippingAddress: domain.ShippingAddress{
					Name: "Stress Tester", Street: "1 Load St", City: "Benchville", PostalCode: "00000", Country: "US",
				},
				PaymentMethod:  domain.PaymentMethodCreditCard,
				IdempotencyKey: fmt.Sprintf("%s-%d", runID, n),
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientInventory):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("request %d: unexpected error: %v", n, err)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	insufficient := insufficientCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Inventory: %d\n", initialInventory)
	fmt.Printf("Total Requests:    %d\n", totalRequests)
	fmt.Printf("Successful:        %d\n", success)
	fmt.Printf("Insufficient:      %d\n", insufficient)
	fmt.Printf("Other Errors:      %d\n", otherCount.Load())
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialInventory) && insufficient == int32(totalRequests-initialInventory) {
		fmt.Printf("PASS: Exactly %d orders succeeded, %d were refused\n", initialInventory, totalRequests-initialInventory)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d insufficient, got %d/%d\n",
			initialInventory, totalRequests-initialInventory, success, insufficient)
	}

	// Verify final inventory and order count in MySQL
	stored, err := mysqlAdapter.GetProduct(ctx, product.ID)
	if err != nil {
		log.Fatalf("failed to reload product: %v", err)
	}
	fmt.Printf("Final Inventory:   %d\n", stored.Inventory)
	if stored.Inventory == 0 {
		fmt.Println("PASS: Inventory depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected inventory 0, got %d\n", stored.Inventory)
	}

	var orders int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = ?`, stressUserID).Scan(&orders); err != nil {
		log.Fatalf("failed to count orders: %v", err)
	}
	if orders == int(success) {
		fmt.Printf("PASS: %d orders persisted\n", orders)
	} else {
		fmt.Printf("FAIL: %d orders persisted for %d successful placements\n", orders, success)
	}

	// Replaying a key must not place a second order
	_, err = orderService.PlaceOrder(ctx, service.PlaceOrderInput{
		UserID:         stressUserID,
		Items:          []domain.LineItem{{ProductID: product.ID, Quantity: 1}},
		PaymentMethod:  domain.PaymentMethodCreditCard,
		IdempotencyKey: fmt.Sprintf("%s-%d", runID, 0),
	})
	if errors.Is(err, service.ErrDuplicateRequest) || errors.Is(err, service.ErrInsufficientInventory) {
		fmt.Println("PASS: Replayed idempotency key rejected")
	} else {
		fmt.Printf("FAIL: Replayed idempotency key returned %v\n", err)
	}
}
