package market

import (
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"shopchain/core/events"
	"shopchain/native/common"
)

var productSeqKey = []byte("market/product/seq")

func productKey(id uint64) []byte {
	return []byte("market/product/" + u64(id))
}

// AddProduct lists a new product and returns its id.
func (m *Market) AddProduct(caller ethcommon.Address, name string, priceCents, stock uint64) (uint64, error) {
	if err := m.authorizeAdmin(caller); err != nil {
		return 0, err
	}
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" || priceCents == 0 {
		return 0, common.WithParams(ErrInvalidProduct, "name", name, "priceCents", u64(priceCents))
	}
	id, err := m.nextID(productSeqKey)
	if err != nil {
		return 0, err
	}
	p := Product{ID: id, Name: name, PriceCents: priceCents, Stock: stock, Active: true}
	if err := m.putProduct(p); err != nil {
		return 0, err
	}
	return id, nil
}

// UpdateProduct replaces the name, price and active flag of a product.
// Stock is managed through SetStock.
func (m *Market) UpdateProduct(caller ethcommon.Address, id uint64, name string, priceCents uint64, active bool) error {
	if err := m.authorizeAdmin(caller); err != nil {
		return err
	}
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return err
	}
	p, err := m.Product(id)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" || priceCents == 0 {
		return common.WithParams(ErrInvalidProduct, "name", name, "priceCents", u64(priceCents))
	}
	p.Name = name
	p.PriceCents = priceCents
	p.Active = active
	return m.putProduct(p)
}

// SetStock overwrites the available quantity of a product.
func (m *Market) SetStock(caller ethcommon.Address, id, stock uint64) error {
	if err := m.authorizeAdmin(caller); err != nil {
		return err
	}
	if err := common.Guard(m.pauses, ModuleName); err != nil {
		return err
	}
	p, err := m.Product(id)
	if err != nil {
		return err
	}
	p.Stock = stock
	return m.putProduct(p)
}

// Product returns the catalog entry for id.
func (m *Market) Product(id uint64) (Product, error) {
	var p Product
	ok, err := m.st.KVGet(productKey(id), &p)
	if err != nil {
		return Product{}, err
	}
	if !ok {
		return Product{}, common.WithParams(ErrProductNotFound, "productId", u64(id))
	}
	return p, nil
}

// Products lists the catalog in id order.
func (m *Market) Products() ([]Product, error) {
	var last uint64
	if _, err := m.st.KVGet(productSeqKey, &last); err != nil {
		return nil, err
	}
	out := make([]Product, 0, last)
	for id := uint64(1); id <= last; id++ {
		p, err := m.Product(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Market) putProduct(p Product) error {
	if err := m.st.KVPut(productKey(p.ID), p); err != nil {
		return err
	}
	m.emit(events.MarketProductUpdated{ID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Stock: p.Stock, Active: p.Active})
	return nil
}

// decrementStock removes qty units of a product, failing without changes when
// fewer remain.
func (m *Market) decrementStock(id, qty uint64) error {
	p, err := m.Product(id)
	if err != nil {
		return err
	}
	if p.Stock < qty {
		return common.WithParams(ErrInsufficientStock,
			"productId", u64(id), "required", u64(qty), "available", u64(p.Stock))
	}
	p.Stock -= qty
	return m.putProduct(p)
}

func (m *Market) restock(id, qty uint64) error {
	p, err := m.Product(id)
	if err != nil {
		return err
	}
	sum, err := addUint64(p.Stock, qty, "stock")
	if err != nil {
		return err
	}
	p.Stock = sum
	return m.putProduct(p)
}
