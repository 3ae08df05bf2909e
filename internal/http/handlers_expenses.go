package http

import (
	"errors"
	"net/http"
	"strconv"

	"rentbook/internal/core"
	"rentbook/internal/log"
	"rentbook/internal/storage"
)

type expenseForm struct {
	Description, Amount, Date string
}

type expensesData struct {
	Form     expenseForm
	Expenses []core.Expense
	Total    core.Money
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	s.renderExpenses(w, r, http.StatusOK, "", expenseForm{Date: dateInput(today(s.now))})
}

func (s *Server) renderExpenses(w http.ResponseWriter, r *http.Request, status int, errMsg string, f expenseForm) {
	data := expensesData{Form: f}
	p := s.newPage(r, "expenses", "Expense Management", &data)
	p.Error = errMsg

	expenses, err := repositoryFrom(r.Context()).Expenses(r.Context())
	if err != nil {
		st, msg := statusFor(err)
		p.Error = msg
		s.render(w, r, st, "expenses.html", p)
		return
	}
	data.Expenses = expenses
	data.Total = core.Sum(expenses, func(e core.Expense) core.Money { return e.Amount })
	s.render(w, r, status, "expenses.html", p)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	form := NewFormParser(r)
	f := expenseForm{
		Description: form.String("description"),
		Amount:      form.String("amount"),
		Date:        form.String("date"),
	}
	e := core.Expense{
		Description: f.Description,
		Amount:      form.Amount("amount"),
		Date:        form.Date("date"),
	}
	err := form.Err()
	if err == nil {
		err = e.Validate()
	}
	if err == nil {
		e, err = repositoryFrom(r.Context()).AddExpense(r.Context(), e)
	}
	if err != nil {
		s.fail(w, r, log.OpCreate, err, func(status int, msg string) {
			s.renderExpenses(w, r, status, msg, f)
		})
		return
	}
	s.structuredLogger.LogRecordChanged(r.Context(), log.OpCreate, storage.CollectionExpenses, e.ID)
	s.done(w, r, "/expenses", "expense_added")
}

// handleDeleteExpenses removes every checked expense. Partial failures keep
// the successful deletions and report the rest.
func (s *Server) handleDeleteExpenses(w http.ResponseWriter, r *http.Request) {
	form := NewFormParser(r)
	ids := form.Strings("id")
	if len(ids) == 0 {
		err := &core.FieldError{Field: "id", Err: errors.New("select at least one expense")}
		s.fail(w, r, log.OpDelete, err, func(status int, msg string) {
			s.renderExpenses(w, r, status, msg, expenseForm{Date: dateInput(today(s.now))})
		})
		return
	}

	deleted, err := repositoryFrom(r.Context()).DeleteExpenses(r.Context(), ids)
	s.logger.InfoContext(r.Context(), "Expense batch delete",
		log.FieldCollection, storage.CollectionExpenses,
		log.FieldCount, deleted,
		"requested", len(ids))
	if err != nil {
		s.structuredLogger.LogError(r.Context(), "Expense batch delete incomplete", err, log.OpDelete, nil)
		msg := strconv.Itoa(len(ids)-deleted) + " of " + strconv.Itoa(len(ids)) +
			" expense(s) could not be deleted. Please retry."
		if isHTMX(r) {
			InternalServerError(msg).TriggerErrorNotification(msg).Write(w)
			return
		}
		s.renderExpenses(w, r, http.StatusInternalServerError, msg, expenseForm{Date: dateInput(today(s.now))})
		return
	}
	s.done(w, r, "/expenses", "expenses_deleted")
}
