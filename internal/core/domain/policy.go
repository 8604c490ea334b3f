package domain

// Access policy. Role denials return ErrForbidden. Reads of another account's
// record return ErrRecordNotFound so that existence is never revealed.

// CanCreate allows only authenticated users to submit readings for themselves.
func CanCreate(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if !p.Role.CanSubmitReadings() {
		return ErrForbidden
	}
	return nil
}

// CanReadOwn allows the owning account, or any admin, to read rec.
func CanReadOwn(p Principal, rec *MeterRecord) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if rec == nil {
		return ErrRecordNotFound
	}
	if p.Role.CanReadAllRecords() || rec.AccountID == p.AccountID {
		return nil
	}
	return ErrRecordNotFound
}

// CanReadAll allows the global record and account listings.
func CanReadAll(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if !p.Role.CanReadAllRecords() {
		return ErrForbidden
	}
	return nil
}

// CanManagePayments allows payment status changes on any record.
func CanManagePayments(p Principal) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}
	if !p.Role.CanManagePayments() {
		return ErrForbidden
	}
	return nil
}
