package models

// Capability names a permission checked by the authorization layer.
type Capability string

const (
	CapUsersRead          Capability = "users:read"
	CapPeriodsManage      Capability = "periods:manage"
	CapEnrollmentsManage  Capability = "enrollments:manage"
	CapEnrollmentsReadAll Capability = "enrollments:read_all"
	CapBookingsGenerate   Capability = "bookings:generate"
	CapBookingsManageAll  Capability = "bookings:manage_all"
	CapAttendanceRecord   Capability = "attendance:record"
	CapAttendanceOverride Capability = "attendance:override"
	CapPayrollRead        Capability = "payroll:read"
	CapPayrollReadAll     Capability = "payroll:read_all"
	CapPayrollExport      Capability = "payroll:export"
	CapCouponsManage      Capability = "coupons:manage"
	CapCreditsSpend       Capability = "credits:spend"
	CapCreditsGrant       Capability = "credits:grant"
	CapCreditsReadAll     Capability = "credits:read_all"
	CapCheckoutCreate     Capability = "checkout:create"
)

var staffCapabilities = []Capability{
	CapUsersRead, CapPeriodsManage, CapEnrollmentsManage, CapEnrollmentsReadAll,
	CapBookingsGenerate, CapBookingsManageAll, CapAttendanceRecord, CapAttendanceOverride,
	CapPayrollRead, CapPayrollReadAll, CapPayrollExport, CapCouponsManage,
	CapCreditsGrant, CapCreditsReadAll,
}

// RoleCapabilities is the single source of truth for role permissions.
var RoleCapabilities = map[UserRole]map[Capability]struct{}{
	RoleSuperAdmin: capabilitySet(staffCapabilities...),
	RoleAdmin:      capabilitySet(staffCapabilities...),
	RoleTeacher:    capabilitySet(CapAttendanceRecord, CapPayrollRead),
	RoleStudent:    capabilitySet(CapBookingsGenerate, CapAttendanceRecord, CapCreditsSpend, CapCheckoutCreate),
}

// Can decides whether role holds capability.
func Can(role UserRole, capability Capability) bool {
	caps, ok := RoleCapabilities[role]
	if !ok {
		return false
	}
	_, allowed := caps[capability]
	return allowed
}

func capabilitySet(items ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
