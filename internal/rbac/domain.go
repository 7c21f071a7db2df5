package rbac

// Role names known to the system. Permissions are loaded from the database so
// deployments can tailor them per role.
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleCashier = "CASHIER"
)

// Permission strings used by the HTTP layer.
const (
	PermProductView   = "product.view"
	PermProductManage = "product.manage"
	PermStockView     = "stock.view"
	PermStockAdjust   = "stock.adjust"
	PermComboView     = "combo.view"
	PermComboManage   = "combo.manage"
	PermSaleCreate    = "sale.create"
	PermSaleView      = "sale.view"
	PermSaleVoid      = "sale.void"
	PermSaleRefund    = "sale.refund"
)
