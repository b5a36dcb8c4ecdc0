package extraction

import (
	"fmt"
	"image"
)

// Role tells the field parser what a zone contains.
type Role string

const (
	RoleHeader           Role = "header"
	RoleProducts         Role = "products"
	RoleQuantitiesPrices Role = "quantities_prices"
	RoleQRCode           Role = "qrcode"
)

// ValidRoles returns every role a layout zone may carry
func ValidRoles() []Role {
	return []Role{RoleHeader, RoleProducts, RoleQuantitiesPrices, RoleQRCode}
}

// Zone is a rectangle of the source image, in source-image pixels.
type Zone struct {
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Whitelist string `json:"whitelist,omitempty"`
}

// Rect returns the zone rectangle relative to bounds' origin.
func (z Zone) Rect(bounds image.Rectangle) image.Rectangle {
	r := image.Rect(z.X, z.Y, z.X+z.Width, z.Y+z.Height).Add(bounds.Min)
	return r.Intersect(bounds)
}

// Layout is the ordered list of zones of one invoice template. Zone order is
// also the order zone texts are concatenated into the invoice raw text.
type Layout struct {
	Name  string `json:"name"`
	Zones []Zone `json:"zones"`
}

// DefaultLayout is the template of the generated invoices.
func DefaultLayout() Layout {
	return Layout{
		Name: "default",
		Zones: []Zone{
			{Name: "Products", Role: RoleProducts, X: 20, Y: 180, Width: 420, Height: 900},
			{Name: "Quantities_and_prices", Role: RoleQuantitiesPrices, X: 510, Y: 180, Width: 280, Height: 900},
			{Name: "Qrcode", Role: RoleQRCode, X: 530, Y: 5, Width: 180, Height: 180},
			{Name: "bloc", Role: RoleHeader, X: 10, Y: 10, Width: 520, Height: 180},
		},
	}
}

// ZoneByRole returns the first zone carrying role.
func (l Layout) ZoneByRole(role Role) (Zone, bool) {
	for _, z := range l.Zones {
		if z.Role == role {
			return z, true
		}
	}
	return Zone{}, false
}

// Validate checks names are unique, rectangles non-empty and roles known.
func (l Layout) Validate() error {
	if len(l.Zones) == 0 {
		return fmt.Errorf("layout %q has no zones", l.Name)
	}

	known := make(map[Role]bool)
	for _, r := range ValidRoles() {
		known[r] = true
	}

	seen := make(map[string]bool)
	for i, z := range l.Zones {
		if z.Name == "" {
			return fmt.Errorf("zone %d has no name", i)
		}
		if seen[z.Name] {
			return fmt.Errorf("duplicate zone name %q", z.Name)
		}
		seen[z.Name] = true

		if !known[z.Role] {
			return fmt.Errorf("zone %q has unknown role %q", z.Name, z.Role)
		}
		if z.Width <= 0 || z.Height <= 0 {
			return fmt.Errorf("zone %q has empty rectangle %dx%d", z.Name, z.Width, z.Height)
		}
		if z.X < 0 || z.Y < 0 {
			return fmt.Errorf("zone %q has negative origin", z.Name)
		}
	}
	return nil
}
