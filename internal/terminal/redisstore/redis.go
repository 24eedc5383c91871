// Package redisstore persists a terminal session's local state in Redis so
// a register survives process restarts. The three collections live under
// well-known keys scoped by hotel and terminal, mirroring the browser
// local-storage layout this store replaces.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/annapurna-pos/api/internal/enum"
	"github.com/annapurna-pos/api/internal/terminal"
)

type Store struct {
	// Redis has no transactions across our read-modify-write cycles, so a
	// process-level mutex serializes all mutations of this terminal's keys.
	mu     sync.Mutex
	client *redis.Client
	prefix string
}

// New builds a store for one terminal session. url is a redis connection
// URL (redis://...); hotelID and terminalID scope the keys.
func New(url, hotelID, terminalID string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Store{
		client: redis.NewClient(opts),
		prefix: fmt.Sprintf("pos:%s:%s", hotelID, terminalID),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) kotsKey() string     { return s.prefix + ":kots" }
func (s *Store) ordersKey() string   { return s.prefix + ":orders" }
func (s *Store) takeawayKey() string { return s.prefix + ":takeaway" }

func (s *Store) CreateKOT(ctx context.Context, kot terminal.KOT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kots, err := loadList[terminal.KOT](ctx, s.client, s.kotsKey())
	if err != nil {
		return err
	}
	kots = append(kots, kot)
	return storeList(ctx, s.client, s.kotsKey(), kots)
}

func (s *Store) GetKOT(ctx context.Context, id string) (terminal.KOT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kots, err := loadList[terminal.KOT](ctx, s.client, s.kotsKey())
	if err != nil {
		return terminal.KOT{}, err
	}
	for _, kot := range kots {
		if kot.ID == id {
			return kot, nil
		}
	}
	return terminal.KOT{}, terminal.ErrNotFound
}

func (s *Store) ListKOTs(ctx context.Context) ([]terminal.KOT, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return loadList[terminal.KOT](ctx, s.client, s.kotsKey())
}

func (s *Store) UpdateKOT(ctx context.Context, kot terminal.KOT) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kots, err := loadList[terminal.KOT](ctx, s.client, s.kotsKey())
	if err != nil {
		return err
	}
	for i := range kots {
		if kots[i].ID == kot.ID {
			kots[i] = kot
			return storeList(ctx, s.client, s.kotsKey(), kots)
		}
	}
	return terminal.ErrNotFound
}

func (s *Store) DeleteKOT(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kots, err := loadList[terminal.KOT](ctx, s.client, s.kotsKey())
	if err != nil {
		return err
	}
	kept := kots[:0]
	for _, kot := range kots {
		if kot.ID != id {
			kept = append(kept, kot)
		}
	}
	return storeList(ctx, s.client, s.kotsKey(), kept)
}

func (s *Store) CreateOrder(ctx context.Context, order terminal.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.orderKeyFor(order)
	orders, err := loadList[terminal.Order](ctx, s.client, key)
	if err != nil {
		return err
	}
	orders = append(orders, order)
	return storeList(ctx, s.client, key, orders)
}

func (s *Store) GetOrder(ctx context.Context, id string) (terminal.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{s.ordersKey(), s.takeawayKey()} {
		orders, err := loadList[terminal.Order](ctx, s.client, key)
		if err != nil {
			return terminal.Order{}, err
		}
		for _, order := range orders {
			if order.ID == id {
				return order, nil
			}
		}
	}
	return terminal.Order{}, terminal.ErrNotFound
}

func (s *Store) ListOrders(ctx context.Context) ([]terminal.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dineIn, err := loadList[terminal.Order](ctx, s.client, s.ordersKey())
	if err != nil {
		return nil, err
	}
	takeaway, err := loadList[terminal.Order](ctx, s.client, s.takeawayKey())
	if err != nil {
		return nil, err
	}
	return append(dineIn, takeaway...), nil
}

func (s *Store) UpdateOrder(ctx context.Context, order terminal.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.orderKeyFor(order)
	orders, err := loadList[terminal.Order](ctx, s.client, key)
	if err != nil {
		return err
	}
	for i := range orders {
		if orders[i].ID == order.ID {
			orders[i] = order
			return storeList(ctx, s.client, key, orders)
		}
	}
	return terminal.ErrNotFound
}

func (s *Store) DeleteOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{s.ordersKey(), s.takeawayKey()} {
		orders, err := loadList[terminal.Order](ctx, s.client, key)
		if err != nil {
			return err
		}
		kept := orders[:0]
		removed := false
		for _, order := range orders {
			if order.ID == id {
				removed = true
				continue
			}
			kept = append(kept, order)
		}
		if removed {
			return storeList(ctx, s.client, key, kept)
		}
	}
	return nil
}

func (s *Store) Snapshot(ctx context.Context) (terminal.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kots, err := loadList[terminal.KOT](ctx, s.client, s.kotsKey())
	if err != nil {
		return terminal.Snapshot{}, err
	}
	orders, err := loadList[terminal.Order](ctx, s.client, s.ordersKey())
	if err != nil {
		return terminal.Snapshot{}, err
	}
	takeaway, err := loadList[terminal.Order](ctx, s.client, s.takeawayKey())
	if err != nil {
		return terminal.Snapshot{}, err
	}
	return terminal.Snapshot{KOTs: kots, Orders: orders, TakeawayOrders: takeaway}, nil
}

func (s *Store) ReplaceSnapshot(ctx context.Context, snap terminal.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pipe := s.client.TxPipeline()
	for key, v := range map[string]any{
		s.kotsKey():     snap.KOTs,
		s.ordersKey():   snap.Orders,
		s.takeawayKey(): snap.TakeawayOrders,
	} {
		payload, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		pipe.Set(ctx, key, payload, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) orderKeyFor(order terminal.Order) string {
	if order.DiningType == enum.DiningTypeTakeaway {
		return s.takeawayKey()
	}
	return s.ordersKey()
}

func loadList[T any](ctx context.Context, client *redis.Client, key string) ([]T, error) {
	val, err := client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal([]byte(val), &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return out, nil
}

func storeList[T any](ctx context.Context, client *redis.Client, key string, list []T) error {
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return client.Set(ctx, key, payload, 0).Err()
}
