package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/export"
)

func scheduleHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		at, err := parseDateTime(req.DateTime, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_time", err.Error())
			return
		}

		appt, err := svc.Schedule(r.Context(), appointment.ScheduleInput{
			PatientID: patientID,
			DoctorID:  doctorID,
			DateTime:  at,
			Reason:    req.Reason,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toResponse(appt, svc.Location()))
	}
}

func updateHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := appointmentID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in := appointment.UpdateInput{Reason: req.Reason, Notes: req.Notes}
		if req.DateTime != nil {
			at, err := parseDateTime(*req.DateTime, svc.Location())
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_time", err.Error())
				return
			}
			in.DateTime = &at
		}

		appt, err := svc.Update(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt, svc.Location()))
	}
}

// transitionHandler serves the per-appointment status change endpoints.
func transitionHandler(svc *appointment.Service, op transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := appointmentID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		appt, err := op(r, id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt, svc.Location()))
	}
}

type transitionFunc func(r *http.Request, id int64) (appointment.Appointment, error)

func confirmOp(svc *appointment.Service) transitionFunc {
	return func(r *http.Request, id int64) (appointment.Appointment, error) {
		return svc.Confirm(r.Context(), id)
	}
}

func cancelOp(svc *appointment.Service) transitionFunc {
	return func(r *http.Request, id int64) (appointment.Appointment, error) {
		return svc.Cancel(r.Context(), id)
	}
}

func noShowOp(svc *appointment.Service) transitionFunc {
	return func(r *http.Request, id int64) (appointment.Appointment, error) {
		return svc.MarkNoShow(r.Context(), id)
	}
}

// completeOp accepts an optional {"notes": ...} body.
func completeOp(svc *appointment.Service) transitionFunc {
	return func(r *http.Request, id int64) (appointment.Appointment, error) {
		var req CompleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return appointment.Appointment{}, errors.Wrap(appointment.ErrInvalidAppointment, "could not parse JSON")
		}
		return svc.Complete(r.Context(), id, req.Notes)
	}
}

func deleteHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := appointmentID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := appointmentID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
			return
		}

		appt, err := svc.ByID(id)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt, svc.Location()))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := selectAppointments(svc, r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toListResponse(appts, svc.Location()))
	}
}

func processNextHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.ProcessNext(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toResponse(appt, svc.Location()))
	}
}

func queueHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := svc.Queue()
		writeJSON(w, http.StatusOK, QueueResponse{
			IDs:       ids,
			Size:      len(ids),
			UndoDepth: svc.UndoDepth(),
		})
	}
}

func undoHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.UndoLast(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, UndoResponse{
			Kind:          string(rec.Kind),
			AppointmentID: rec.AppointmentID,
		})
	}
}

func dailyReportHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("date")
		if raw == "" {
			writeError(w, http.StatusBadRequest, "invalid_query", "date is required")
			return
		}
		day, err := parseDate(raw, svc.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		counts := svc.DailyStatusCounts(day)
		out := make(map[string]int, len(counts))
		for st, n := range counts {
			out[string(st)] = n
		}

		writeJSON(w, http.StatusOK, DailyReportResponse{
			Date:   day.Format(dateLayout),
			Counts: out,
			Total:  counts.Total(),
		})
	}
}

func exportHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		format, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_format", err.Error())
			return
		}

		appts, err := selectAppointments(svc, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", `attachment; filename="appointments.`+string(format)+`"`)
		w.WriteHeader(http.StatusOK)
		if err := export.Write(w, format, appts, svc.Location()); err != nil {
			// headers are out, so the client only sees a short body
			zerolog.Ctx(r.Context()).Error().Err(err).
				Str("format", string(format)).
				Int("appointments", len(appts)).
				Msg("export write failed")
		}
	}
}

// selectAppointments resolves the list filters. The first present filter in
// the order status, patient_id, doctor_id, date, from/to is answered by the
// engine's query layer and the rest narrow its result.
func selectAppointments(svc *appointment.Service, q url.Values) ([]appointment.Appointment, error) {
	var keep []func(appointment.Appointment) bool
	var base []appointment.Appointment
	loc := svc.Location()

	narrow := func(query func() []appointment.Appointment, pred func(appointment.Appointment) bool) {
		if base == nil {
			base = query()
			return
		}
		keep = append(keep, pred)
	}

	if raw := q.Get("status"); raw != "" {
		st, err := appointment.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		narrow(func() []appointment.Appointment { return svc.ByStatus(st) },
			func(a appointment.Appointment) bool { return a.Status == st })
	}

	if raw := q.Get("patient_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("patient_id must be a valid UUID")
		}
		narrow(func() []appointment.Appointment { return svc.ByPatient(id) },
			func(a appointment.Appointment) bool { return a.PatientID == id })
	}

	if raw := q.Get("doctor_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("doctor_id must be a valid UUID")
		}
		narrow(func() []appointment.Appointment { return svc.ByDoctor(id) },
			func(a appointment.Appointment) bool { return a.DoctorID == id })
	}

	if raw := q.Get("date"); raw != "" {
		day, err := parseDate(raw, loc)
		if err != nil {
			return nil, err
		}
		end := day.AddDate(0, 0, 1)
		narrow(func() []appointment.Appointment { return svc.ByDate(day) },
			func(a appointment.Appointment) bool { return !a.DateTime.Before(day) && a.DateTime.Before(end) })
	}

	fromRaw, toRaw := q.Get("from"), q.Get("to")
	if fromRaw != "" || toRaw != "" {
		if fromRaw == "" || toRaw == "" {
			return nil, errors.New("from and to must be given together")
		}
		from, err := parseDate(fromRaw, loc)
		if err != nil {
			return nil, err
		}
		to, err := parseDate(toRaw, loc)
		if err != nil {
			return nil, err
		}
		if to.Before(from) {
			from, to = to, from
		}
		end := to.AddDate(0, 0, 1)
		narrow(func() []appointment.Appointment { return svc.ByDateRange(from, to) },
			func(a appointment.Appointment) bool { return !a.DateTime.Before(from) && a.DateTime.Before(end) })
	}

	if base == nil {
		return svc.All(), nil
	}

	out := base[:0]
	for _, a := range base {
		matched := true
		for _, pred := range keep {
			if !pred(a) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, a)
		}
	}
	return out, nil
}
