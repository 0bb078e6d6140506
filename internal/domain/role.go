package domain

// Role enumerates user roles. Every role except RoleCustomer is a staff role.
type Role string

const (
	RoleSuperAdmin       Role = "super_admin"
	RoleDirector         Role = "director"
	RoleManager          Role = "manager"
	RoleSalesManager     Role = "sales_manager"
	RoleSalesPerson      Role = "sales_person"
	RoleProjectManager   Role = "project_manager"
	RoleInventoryManager Role = "inventory_manager"
	RoleCashier          Role = "cashier"
	RoleTechnician       Role = "technician"
	RoleCustomer         Role = "customer"
)

var roleAbbreviations = map[Role]string{
	RoleSuperAdmin:       "ADM",
	RoleDirector:         "DIR",
	RoleManager:          "MGR",
	RoleSalesManager:     "SMG",
	RoleSalesPerson:      "SPN",
	RoleProjectManager:   "PMG",
	RoleInventoryManager: "IMG",
	RoleCashier:          "CSR",
	RoleTechnician:       "TEC",
}

// StaffRoles lists the staff roles in a stable order.
var StaffRoles = []Role{
	RoleSuperAdmin,
	RoleDirector,
	RoleManager,
	RoleSalesManager,
	RoleSalesPerson,
	RoleProjectManager,
	RoleInventoryManager,
	RoleCashier,
	RoleTechnician,
}

// Abbreviation returns the three-letter employee ID code for a staff role.
func (r Role) Abbreviation() (string, bool) {
	abbr, ok := roleAbbreviations[r]
	return abbr, ok
}

// IsStaff reports whether the role carries an employee ID.
func (r Role) IsStaff() bool {
	_, ok := roleAbbreviations[r]
	return ok
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleCustomer || r.IsStaff()
}
