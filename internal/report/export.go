package report

import (
	"encoding/csv"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"superpos/backend/internal/domain"
)

func WriteTransactionsCSV(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "timestamp", "cashier_id", "customer_id", "items", "payment_method", "subtotal", "tax", "discount", "total", "status"}); err != nil {
		return err
	}
	for _, tx := range txs {
		record := []string{
			tx.ID,
			tx.Timestamp.UTC().Format(time.RFC3339),
			tx.CashierID,
			tx.CustomerID,
			strconv.Itoa(tx.ItemCount()),
			tx.PaymentMethod,
			domain.Display(tx.Subtotal).StringFixed(2),
			domain.Display(tx.Tax).StringFixed(2),
			domain.Display(tx.Discount).StringFixed(2),
			domain.Display(tx.Total).StringFixed(2),
			string(tx.Status),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteInventoryCSV(w io.Writer, products []domain.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "barcode", "name", "category", "price", "stock", "low_stock_threshold", "status"}); err != nil {
		return err
	}
	for _, p := range products {
		status := "in_stock"
		switch {
		case p.IsOutOfStock():
			status = "out_of_stock"
		case p.IsLowStock():
			status = "low_stock"
		}
		record := []string{
			p.ID,
			p.Barcode,
			p.Name,
			p.Category,
			p.Price.StringFixed(2),
			strconv.Itoa(p.Stock),
			strconv.Itoa(p.LowStockThreshold),
			status,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSalesCSV flattens a sales report into section,key,value rows.
func WriteSalesCSV(w io.Writer, r domain.SalesReport) error {
	rows := [][]string{
		{"section", "key", "value"},
		{"summary", "transactions", strconv.Itoa(r.Transactions)},
		{"summary", "items_sold", strconv.Itoa(r.ItemsSold)},
		{"summary", "revenue", domain.Display(r.Revenue).StringFixed(2)},
		{"summary", "tax", domain.Display(r.Tax).StringFixed(2)},
		{"summary", "discounts", domain.Display(r.Discounts).StringFixed(2)},
		{"summary", "average_transaction", domain.Display(r.AverageTransaction).StringFixed(2)},
	}
	for _, p := range r.TopProducts {
		rows = append(rows, []string{"top_product", p.Name, strconv.Itoa(p.Quantity)})
	}
	for _, c := range r.Categories {
		rows = append(rows, []string{"category", c.Category, domain.Display(c.Revenue).StringFixed(2)})
	}
	for _, p := range r.PaymentMethods {
		rows = append(rows, []string{"payment", p.Method, domain.Display(p.Revenue).StringFixed(2)})
	}
	for _, c := range r.Cashiers {
		rows = append(rows, []string{"cashier", c.CashierID, domain.Display(c.Revenue).StringFixed(2)})
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// salesHTMLTmpl renders a printable sales report. html/template escapes every
// product and cashier name.
var salesHTMLTmpl = template.Must(template.New("sales-report").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return domain.Display(d).StringFixed(2) },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Sales Report</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Sales Report</h2>
  <p>Generated: {{.GeneratedAt.Format "2006-01-02 15:04 MST"}}</p>
  <p>Transactions: {{.Transactions}} | Items: {{.ItemsSold}} | Revenue: {{money .Revenue}} | Average: {{money .AverageTransaction}}</p>

  <h3>Top Products</h3>
  <table>
    <thead><tr><th>Product</th><th>Quantity</th><th>Revenue</th></tr></thead>
    <tbody>{{range .TopProducts}}<tr><td>{{.Name}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{money .Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>By Category</h3>
  <table>
    <thead><tr><th>Category</th><th>Quantity</th><th>Revenue</th></tr></thead>
    <tbody>{{range .Categories}}<tr><td>{{.Category}}</td><td style="text-align:right;">{{.Quantity}}</td><td style="text-align:right;">{{money .Revenue}}</td></tr>{{end}}</tbody>
  </table>

  <h3>By Cashier</h3>
  <table>
    <thead><tr><th>Cashier</th><th>Transactions</th><th>Revenue</th></tr></thead>
    <tbody>{{range .Cashiers}}<tr><td>{{if .Name}}{{.Name}}{{else}}{{.CashierID}}{{end}}</td><td style="text-align:right;">{{.Transactions}}</td><td style="text-align:right;">{{money .Revenue}}</td></tr>{{end}}</tbody>
  </table>
</body>
</html>
`))

func WriteSalesHTML(w io.Writer, r domain.SalesReport) error {
	return salesHTMLTmpl.Execute(w, r)
}
