package customer

import "time"

type Customer struct {
	CustomerID int64     `json:"customerId"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address"`
	IDProof    string    `json:"idProof"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewCustomer(name, phone, address, idProof string) *Customer {
	now := time.Now()
	return &Customer{
		Name:      name,
		Phone:     phone,
		Address:   address,
		IDProof:   idProof,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update applies the non-empty fields. Blank inputs leave the stored value
// alone so partial updates do not erase data.
func (c *Customer) Update(name, phone, address, idProof string) {
	if name != "" {
		c.Name = name
	}
	if phone != "" {
		c.Phone = phone
	}
	if address != "" {
		c.Address = address
	}
	if idProof != "" {
		c.IDProof = idProof
	}
	c.UpdatedAt = time.Now()
}
