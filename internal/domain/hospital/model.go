package hospital

import "sort"

const NotAvailable = "N/A"

type Department struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	HeadDoctorID *int64 `json:"head_doctor_id,omitempty"`
}

type Doctor struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	DepartmentID int64  `json:"department_id"`
	Load         int    `json:"load"`
}

type Chamber struct {
	ID           int64 `json:"id"`
	DepartmentID int64 `json:"department_id"`
	Capacity     int   `json:"capacity"`
	Occupied     int   `json:"occupied"`
}

func (c Chamber) Free() int {
	return c.Capacity - c.Occupied
}

// DepartmentReport summarizes one department's beds.
type DepartmentReport struct {
	DepartmentID  int64  `json:"department_id"`
	Name          string `json:"name"`
	HeadDoctor    string `json:"head_doctor"`
	TotalCapacity int    `json:"total_capacity"`
	Occupied      int    `json:"occupied"`
	Free          int    `json:"free"`
}

// Assignment is the result of a successful Assign.
type Assignment struct {
	PatientID     int64  `json:"patient_id"`
	DepartmentID  int64  `json:"department_id"`
	DoctorID      int64  `json:"doctor_id"`
	DoctorName    string `json:"doctor_name"`
	ChamberID     int64  `json:"chamber_id"`
	AppointmentID int64  `json:"appointment_id"`
}

type AssignRequest struct {
	DepartmentID int64 `json:"department_id"`
}

// PickDoctor returns the least loaded doctor, lowest id first on ties.
func PickDoctor(doctors []Doctor) (Doctor, bool) {
	if len(doctors) == 0 {
		return Doctor{}, false
	}
	sorted := append([]Doctor(nil), doctors...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Load != sorted[j].Load {
			return sorted[i].Load < sorted[j].Load
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0], true
}

// PickChamber returns the chamber with the most free beds, lowest id first
// on ties. Full chambers are never picked.
func PickChamber(chambers []Chamber) (Chamber, bool) {
	var best Chamber
	found := false
	for _, c := range chambers {
		if c.Occupied >= c.Capacity {
			continue
		}
		if !found || c.Free() > best.Free() || (c.Free() == best.Free() && c.ID < best.ID) {
			best, found = c, true
		}
	}
	return best, found
}
