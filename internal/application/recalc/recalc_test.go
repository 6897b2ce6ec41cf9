package recalc

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/bookcatalog/internal/domain/book"
	"github.com/xiebiao/bookcatalog/internal/domain/category"
	"github.com/xiebiao/bookcatalog/internal/domain/pricing"
	domain "github.com/xiebiao/bookcatalog/internal/domain/recalc"
	"github.com/xiebiao/bookcatalog/internal/infrastructure/queue"
	"github.com/xiebiao/bookcatalog/pkg/circuitbreaker"
	"github.com/xiebiao/bookcatalog/pkg/logger"
)

// =========================================
// 内存存储（模拟MySQL中的图书/分类/折扣组）
// =========================================

type storedBook struct {
	priceOriginal decimal.NullDecimal
	discount      decimal.NullDecimal
	groupID       uint
	categories    []uint

	discountTotal decimal.Decimal
	price         decimal.NullDecimal
}

type fakeStore struct {
	mu         sync.Mutex
	books      map[uint]*storedBook
	groups     map[uint]decimal.Decimal
	categories map[uint]pricing.CategoryStats

	savePrice map[uint]int
	saveStats map[uint]int
	failLoads int // 接下来LoadPriceInputs失败的次数
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		books:      map[uint]*storedBook{},
		groups:     map[uint]decimal.Decimal{},
		categories: map[uint]pricing.CategoryStats{},
		savePrice:  map[uint]int{},
		saveStats:  map[uint]int{},
	}
}

func (s *fakeStore) LoadPriceInputs(_ context.Context, id uint) (book.PriceInputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoads > 0 {
		s.failLoads--
		return book.PriceInputs{}, errors.New("driver: bad connection")
	}
	b, ok := s.books[id]
	if !ok {
		return book.PriceInputs{}, book.ErrBookNotFound
	}
	in := book.PriceInputs{PriceOriginal: b.priceOriginal, Discount: b.discount}
	if g, ok := s.groups[b.groupID]; ok && b.groupID != 0 {
		in.GroupDiscount = decimal.NewNullDecimal(g)
	}
	return in, nil
}

func (s *fakeStore) SavePrice(_ context.Context, id uint, p pricing.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savePrice[id]++
	if b, ok := s.books[id]; ok {
		b.discountTotal = p.DiscountTotal
		b.price = p.Price
	}
	return nil
}

func (s *fakeStore) CategoryIDs(_ context.Context, id uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	if !ok {
		return nil, book.ErrBookNotFound
	}
	return append([]uint(nil), b.categories...), nil
}

func (s *fakeStore) BookPrices(_ context.Context, id uint) ([]decimal.NullDecimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return nil, category.ErrCategoryNotFound
	}
	var prices []decimal.NullDecimal
	for _, b := range s.books {
		for _, c := range b.categories {
			if c == id {
				prices = append(prices, b.price)
			}
		}
	}
	return prices, nil
}

func (s *fakeStore) SaveStats(_ context.Context, id uint, stats pricing.CategoryStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveStats[id]++
	s.categories[id] = stats
	return nil
}

func (s *fakeStore) resetCounters() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.savePrice = map[uint]int{}
	s.saveStats = map[uint]int{}
}

// =========================================
// 测试装配
// =========================================

type harness struct {
	store     *fakeStore
	queue     *queue.Memory
	scheduler *Scheduler
	triggers  *Triggers
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logger.Nop()
	store := newFakeStore()
	q := queue.NewMemory(queue.RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, log)
	dedup := queue.NewMemoryDeduper(time.Minute)
	dispatcher := NewDispatcher(q, dedup, log)

	return &harness{
		store:     store,
		queue:     q,
		scheduler: NewScheduler(store, store, dispatcher, dedup, nil, log),
		triggers:  NewTriggers(dispatcher, log),
	}
}

func (h *harness) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, h.queue.Drain(context.Background(), h.scheduler))
}

func (h *harness) price(t *testing.T, bookID uint) decimal.NullDecimal {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.books[bookID].price
}

func (h *harness) stats(categoryID uint) pricing.CategoryStats {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	return h.store.categories[categoryID]
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func assertPrice(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "期望售价 %s，实际为空", want)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "期望售价 %s，实际 %s", want, got.Decimal)
}

// =========================================
// 用例
// =========================================

// 原价1000：折扣10 → 900；折扣20 → 800；加入20%折扣组 → 600；
// 折扣组改为30 → 500；自身折扣改为0 → 700
func TestScenario_BookPriceFollowsInputs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[1] = pricing.CategoryStats{}
	h.store.books[1] = &storedBook{priceOriginal: dec("1000"), discount: dec("10"), categories: []uint{1}}
	h.triggers.OnBookChanged(ctx, 1, []uint{1})
	h.settle(t)
	assertPrice(t, "900", h.price(t, 1))
	assertPrice(t, "900", h.stats(1).AveragePrice)

	h.store.books[1].discount = dec("20")
	h.triggers.OnBookChanged(ctx, 1, []uint{1})
	h.settle(t)
	assertPrice(t, "800", h.price(t, 1))

	h.store.groups[1] = decimal.NewFromInt(20)
	h.store.books[1].groupID = 1
	h.triggers.OnBookChanged(ctx, 1, []uint{1})
	h.settle(t)
	assertPrice(t, "600", h.price(t, 1))
	assert.True(t, decimal.NewFromInt(40).Equal(h.store.books[1].discountTotal))

	h.store.groups[1] = decimal.NewFromInt(30)
	h.triggers.OnDiscountGroupChanged(ctx, 1, []uint{1})
	h.settle(t)
	assertPrice(t, "500", h.price(t, 1))

	h.store.books[1].discount = dec("0")
	h.triggers.OnBookChanged(ctx, 1, []uint{1})
	h.settle(t)
	assertPrice(t, "700", h.price(t, 1))
	assertPrice(t, "700", h.stats(1).AveragePrice)
	assert.Equal(t, 1, h.stats(1).Count)
}

// 分类下3本书20/40/60 → 数量3，均价40；其中20的原价置空 → 均价按剩余两本计算
func TestScenario_CategoryAverageSkipsNullPrices(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[5] = pricing.CategoryStats{}
	for id, p := range map[uint]string{1: "20", 2: "40", 3: "60"} {
		h.store.books[id] = &storedBook{priceOriginal: dec(p), categories: []uint{5}}
		h.triggers.OnBookChanged(ctx, id, []uint{5})
	}
	h.settle(t)

	stats := h.stats(5)
	assert.Equal(t, 3, stats.Count)
	assertPrice(t, "40", stats.AveragePrice)

	h.store.books[1].priceOriginal = decimal.NullDecimal{}
	h.triggers.OnBookChanged(ctx, 1, []uint{5})
	h.settle(t)

	assert.False(t, h.price(t, 1).Valid)
	stats = h.stats(5)
	assert.Equal(t, 3, stats.Count, "无售价的图书仍计入数量")
	assertPrice(t, "50", stats.AveragePrice)
}

// 折扣组20 → 30，3本书分属2个分类：3本书全部重算，每个分类只重算一次
func TestDiscountGroupFanOut_EachCategoryOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.groups[9] = decimal.NewFromInt(20)
	h.store.categories[1] = pricing.CategoryStats{}
	h.store.categories[2] = pricing.CategoryStats{}
	h.store.books[1] = &storedBook{priceOriginal: dec("100"), groupID: 9, categories: []uint{1}}
	h.store.books[2] = &storedBook{priceOriginal: dec("200"), groupID: 9, categories: []uint{1, 2}}
	h.store.books[3] = &storedBook{priceOriginal: dec("300"), groupID: 9, categories: []uint{2}}
	for id := uint(1); id <= 3; id++ {
		h.triggers.OnBookChanged(ctx, id, h.store.books[id].categories)
	}
	h.settle(t)
	assertPrice(t, "120", h.stats(1).AveragePrice) // (80+160)/2
	h.store.resetCounters()

	h.store.groups[9] = decimal.NewFromInt(30)
	h.triggers.OnDiscountGroupChanged(ctx, 9, []uint{1, 2, 3})
	h.settle(t)

	assertPrice(t, "70", h.price(t, 1))
	assertPrice(t, "140", h.price(t, 2))
	assertPrice(t, "210", h.price(t, 3))
	assert.Equal(t, map[uint]int{1: 1, 2: 1, 3: 1}, h.store.savePrice)
	assert.Equal(t, map[uint]int{1: 1, 2: 1}, h.store.saveStats)
	assertPrice(t, "105", h.stats(1).AveragePrice)
	assertPrice(t, "175", h.stats(2).AveragePrice)
}

func TestRecomputeBook_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.books[1] = &storedBook{priceOriginal: dec("59.90"), discount: dec("15")}

	require.NoError(t, h.scheduler.RecomputeBook(ctx, 1))
	first := *h.store.books[1]
	require.NoError(t, h.scheduler.RecomputeBook(ctx, 1))
	second := *h.store.books[1]

	assertPrice(t, "50.92", first.price)
	assert.True(t, first.price.Decimal.Equal(second.price.Decimal))
	assert.True(t, first.discountTotal.Equal(second.discountTotal))
}

func TestVanishedEntitiesAreNoops(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	assert.NoError(t, h.scheduler.RecomputeBook(ctx, 404))
	assert.NoError(t, h.scheduler.RecomputeCategory(ctx, 404))
	assert.Empty(t, h.store.savePrice)
	assert.Empty(t, h.store.saveStats)
}

// 删除图书：使用删除前捕获的分类重算
func TestBookDeleted_RecomputesCapturedCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[1] = pricing.CategoryStats{}
	h.store.categories[2] = pricing.CategoryStats{}
	h.store.books[1] = &storedBook{priceOriginal: dec("10"), categories: []uint{1, 2}}
	h.store.books[2] = &storedBook{priceOriginal: dec("30"), categories: []uint{1}}
	h.triggers.OnBookChanged(ctx, 1, []uint{1, 2})
	h.triggers.OnBookChanged(ctx, 2, []uint{1})
	h.settle(t)
	assert.Equal(t, 2, h.stats(1).Count)

	captured := h.store.books[1].categories
	delete(h.store.books, 1)
	h.triggers.OnBookDeleted(ctx, 1, captured)
	h.settle(t)

	assert.Equal(t, 1, h.stats(1).Count)
	assertPrice(t, "30", h.stats(1).AveragePrice)
	assert.Equal(t, 0, h.stats(2).Count)
	assert.False(t, h.stats(2).AveragePrice.Valid)
}

// 图书从分类1移到分类2：两个分类都要重算
func TestBookMovedBetweenCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[1] = pricing.CategoryStats{}
	h.store.categories[2] = pricing.CategoryStats{}
	h.store.books[1] = &storedBook{priceOriginal: dec("10"), categories: []uint{1}}
	h.triggers.OnBookChanged(ctx, 1, []uint{1})
	h.settle(t)

	h.store.books[1].categories = []uint{2}
	h.triggers.OnBookChanged(ctx, 1, book.UnionIDs([]uint{1}, []uint{2}))
	h.settle(t)

	assert.Equal(t, 0, h.stats(1).Count)
	assert.Equal(t, 1, h.stats(2).Count)
}

// 扇出时也会读取图书当前的分类（捕获之后新加入的分类）
func TestFanOut_IncludesCurrentCategories(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[1] = pricing.CategoryStats{}
	h.store.categories[2] = pricing.CategoryStats{}
	h.store.books[1] = &storedBook{priceOriginal: dec("10"), categories: []uint{1, 2}}

	require.NoError(t, h.scheduler.FanOutCategories(ctx, 1, []uint{1}))
	assert.Equal(t, 2, h.queue.Len())
	h.settle(t)
	assert.Equal(t, map[uint]int{1: 1, 2: 1}, h.store.saveStats)
}

func TestCategoryChanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[3] = pricing.CategoryStats{Count: 99}
	h.triggers.OnCategoryChanged(ctx, 3)
	h.triggers.OnCategoryChanged(ctx, 3)
	assert.Equal(t, 1, h.queue.Len(), "待执行的分类任务只投递一次")

	h.settle(t)
	assert.Equal(t, 0, h.stats(3).Count)

	// 执行后可以再次投递
	h.triggers.OnCategoryChanged(ctx, 3)
	assert.Equal(t, 1, h.queue.Len())
}

// 存储暂时不可用：任务失败，由队列重试；失败时不投递链式任务
func TestTransientStoreError_Retried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.store.categories[1] = pricing.CategoryStats{}
	h.store.books[1] = &storedBook{priceOriginal: dec("80"), categories: []uint{1}}

	h.store.failLoads = 1
	err := h.scheduler.Run(ctx, domain.NewBookJob(1, []uint{1}))
	require.Error(t, err)
	assert.Zero(t, h.queue.Len(), "失败的任务不应投递链式任务")

	h.store.failLoads = 2
	h.triggers.OnBookChanged(ctx, 1, []uint{1})
	h.settle(t)
	assertPrice(t, "80", h.price(t, 1))
	assertPrice(t, "80", h.stats(1).AveragePrice)
}

// 存储故障触发熔断后恢复：熔断期间的任务延后执行而不是被丢弃
func TestBreakerOpen_JobsWaitInsteadOfDropping(t *testing.T) {
	log := logger.Nop()
	store := newFakeStore()
	// 只允许执行一次：熔断拒绝若计入次数，任务会直接被放弃
	q := queue.NewMemory(queue.RetryPolicy{MaxAttempts: 1, InitialBackoff: time.Millisecond}, log)
	dedup := queue.NewMemoryDeduper(time.Minute)
	dispatcher := NewDispatcher(q, dedup, log)
	cfg := circuitbreaker.DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	scheduler := NewScheduler(store, store, dispatcher, dedup, circuitbreaker.NewCircuitBreaker("recalc-test", cfg), log)
	ctx := context.Background()

	store.categories[1] = pricing.CategoryStats{}
	store.books[1] = &storedBook{priceOriginal: dec("80"), categories: []uint{1}}

	store.failLoads = 5
	for i := 0; i < 5; i++ {
		require.Error(t, scheduler.Run(ctx, domain.NewBookJob(1, nil)))
	}
	require.Zero(t, store.failLoads)

	err := scheduler.Run(ctx, domain.NewBookJob(1, nil))
	d, ok := domain.AsDeferred(err)
	require.True(t, ok, "熔断中应返回延后: %v", err)
	assert.Greater(t, d.After, time.Duration(0))
	assert.Zero(t, store.savePrice[1])

	require.NoError(t, q.Enqueue(ctx, domain.NewBookJob(1, []uint{1})))
	require.NoError(t, q.Drain(ctx, scheduler))

	assertPrice(t, "80", store.books[1].price)
	assertPrice(t, "80", store.categories[1].AveragePrice)
	assert.Equal(t, 1, store.categories[1].Count)
}

func TestRun_RejectsInvalidJob(t *testing.T) {
	h := newHarness(t)

	err := h.scheduler.Run(context.Background(), domain.Job{Name: "recalc.author", BookID: 1})
	require.Error(t, err)
	assert.True(t, queue.IsPermanent(err))
}

type failingDeduper struct{}

func (failingDeduper) Claim(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}
func (failingDeduper) Release(context.Context, string) error { return nil }

// 合并登记不可用时仍然投递
func TestDispatcher_FailsOpen(t *testing.T) {
	q := queue.NewMemory(queue.DefaultRetryPolicy(), logger.Nop())
	d := NewDispatcher(q, failingDeduper{}, logger.Nop())

	require.NoError(t, d.Dispatch(context.Background(), domain.NewCategoryJob(1)))
	require.NoError(t, d.Dispatch(context.Background(), domain.NewCategoryJob(1)))
	assert.Equal(t, 2, q.Len())
}

// 投递失败时释放登记，下一次变更可以重新投递
func TestDispatcher_ReleasesClaimWhenEnqueueFails(t *testing.T) {
	q := queue.NewMemory(queue.DefaultRetryPolicy(), logger.Nop())
	dedup := queue.NewMemoryDeduper(time.Minute)
	d := NewDispatcher(q, dedup, logger.Nop())
	q.Close()

	require.Error(t, d.Dispatch(context.Background(), domain.NewCategoryJob(1)))

	ok, err := dedup.Claim(context.Background(), domain.CategoryDedupKey(1))
	require.NoError(t, err)
	assert.True(t, ok)
}
