package cart_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"superpos/backend/internal/cart"
	"superpos/backend/internal/domain"
	"superpos/backend/internal/seed"
	"superpos/backend/internal/store"
	"superpos/backend/internal/store/memory"
)

type cartTestContext struct {
	catalog  *memory.Store
	opts     cart.Options
	engine   *cart.Engine
	tx       domain.Transaction
	checkErr error
}

func (c *cartTestContext) reset() error {
	catalog, err := memory.New(seed.Dataset{})
	if err != nil {
		return err
	}
	c.catalog = catalog
	c.opts = cart.DefaultOptions()
	c.engine = nil
	c.tx = domain.Transaction{}
	c.checkErr = nil
	return nil
}

func (c *cartTestContext) cart() *cart.Engine {
	if c.engine == nil {
		c.engine = cart.New(c.catalog, c.opts)
	}
	return c.engine
}

func (c *cartTestContext) aProductNamedPricedWithStock(id, name, price string, stock int) error {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	_, err = c.catalog.UpsertProduct(context.Background(), domain.Product{
		ID:       id,
		Name:     name,
		Category: "Grocery",
		Price:    amount,
		Stock:    stock,
	})
	return err
}

func (c *cartTestContext) oversellingIsDisabled() error {
	c.opts.AllowOversell = false
	return nil
}

func (c *cartTestContext) iAddOfProduct(qty int, id string) error {
	product, err := c.catalog.FindProductByID(context.Background(), id)
	if err != nil {
		return err
	}
	return c.cart().AddItem(*product, qty)
}

func (c *cartTestContext) thePriceOfProductChangesTo(id, price string) error {
	product, err := c.catalog.FindProductByID(context.Background(), id)
	if err != nil {
		return err
	}
	product.Price, err = decimal.NewFromString(price)
	if err != nil {
		return err
	}
	_, err = c.catalog.UpsertProduct(context.Background(), *product)
	return err
}

func (c *cartTestContext) iSetTheQuantityOfProductTo(id string, qty int) error {
	c.cart().SetQuantity(id, qty)
	return nil
}

func (c *cartTestContext) iCheckOutPayingAsCashier(method, cashierID string) error {
	c.tx, c.checkErr = c.cart().Checkout(context.Background(), method, cashierID)
	return nil
}

func expectAmount(label string, got decimal.Decimal, want string) error {
	expected, err := decimal.NewFromString(want)
	if err != nil {
		return err
	}
	if !got.Equal(expected) {
		return fmt.Errorf("expected %s %s, got %s", label, want, got)
	}
	return nil
}

func (c *cartTestContext) theSubtotalIs(want string) error {
	return expectAmount("subtotal", c.cart().Subtotal(), want)
}

func (c *cartTestContext) theTaxIs(want string) error {
	return expectAmount("tax", c.cart().Tax(), want)
}

func (c *cartTestContext) theTotalIs(want string) error {
	return expectAmount("total", c.cart().Total(), want)
}

func (c *cartTestContext) theTransactionTotalDisplaysAs(want string) error {
	if c.checkErr != nil {
		return fmt.Errorf("checkout failed: %w", c.checkErr)
	}
	if got := domain.Display(c.tx.Total).StringFixed(2); got != want {
		return fmt.Errorf("expected display total %s, got %s", want, got)
	}
	return nil
}

func (c *cartTestContext) theTransactionHasItems(n int) error {
	if len(c.tx.Items) != n {
		return fmt.Errorf("expected %d items, got %d", n, len(c.tx.Items))
	}
	return nil
}

func (c *cartTestContext) theCartIsEmpty() error {
	e := c.cart()
	if !e.IsEmpty() || !e.Subtotal().IsZero() || e.Customer() != nil {
		return fmt.Errorf("expected empty cart, got %d lines", e.Len())
	}
	return nil
}

func (c *cartTestContext) theCartHasLine(n int) error {
	if got := c.cart().Len(); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *cartTestContext) productInTheCartHasQuantityAt(id string, qty int, price string) error {
	for _, line := range c.cart().Lines() {
		if line.ProductID != id {
			continue
		}
		if line.Quantity != qty {
			return fmt.Errorf("expected quantity %d, got %d", qty, line.Quantity)
		}
		return expectAmount("unit price", line.UnitPrice, price)
	}
	return fmt.Errorf("product %s is not in the cart", id)
}

func (c *cartTestContext) productHasStock(id string, stock int) error {
	product, err := c.catalog.FindProductByID(context.Background(), id)
	if err != nil {
		return err
	}
	if product.Stock != stock {
		return fmt.Errorf("expected stock %d for product %s, got %d", stock, id, product.Stock)
	}
	return nil
}

func (c *cartTestContext) checkoutFailsBecauseTheCartIsEmpty() error {
	if !errors.Is(c.checkErr, cart.ErrEmptyCart) {
		return fmt.Errorf("expected empty cart error, got %v", c.checkErr)
	}
	return nil
}

func (c *cartTestContext) checkoutFailsForInsufficientStock() error {
	if !errors.Is(c.checkErr, store.ErrInsufficientStock) {
		return fmt.Errorf("expected insufficient stock error, got %v", c.checkErr)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &cartTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, tc.reset()
	})

	ctx.Step(`^a product "([^"]*)" named "([^"]*)" priced "([^"]*)" with stock (\d+)$`, tc.aProductNamedPricedWithStock)
	ctx.Step(`^overselling is disabled$`, tc.oversellingIsDisabled)

	ctx.Step(`^I add (\d+) of product "([^"]*)"$`, tc.iAddOfProduct)
	ctx.Step(`^the price of product "([^"]*)" changes to "([^"]*)"$`, tc.thePriceOfProductChangesTo)
	ctx.Step(`^I set the quantity of product "([^"]*)" to (-?\d+)$`, tc.iSetTheQuantityOfProductTo)
	ctx.Step(`^I check out paying "([^"]*)" as cashier "([^"]*)"$`, tc.iCheckOutPayingAsCashier)

	ctx.Step(`^the subtotal is "([^"]*)"$`, tc.theSubtotalIs)
	ctx.Step(`^the tax is "([^"]*)"$`, tc.theTaxIs)
	ctx.Step(`^the total is "([^"]*)"$`, tc.theTotalIs)
	ctx.Step(`^the transaction total displays as "([^"]*)"$`, tc.theTransactionTotalDisplaysAs)
	ctx.Step(`^the transaction has (\d+) items$`, tc.theTransactionHasItems)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the cart has (\d+) lines?$`, tc.theCartHasLine)
	ctx.Step(`^product "([^"]*)" in the cart has quantity (\d+) at "([^"]*)"$`, tc.productInTheCartHasQuantityAt)
	ctx.Step(`^product "([^"]*)" has stock (-?\d+)$`, tc.productHasStock)
	ctx.Step(`^checkout fails because the cart is empty$`, tc.checkoutFailsBecauseTheCartIsEmpty)
	ctx.Step(`^checkout fails for insufficient stock$`, tc.checkoutFailsForInsufficientStock)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/cart.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
