package mac

import (
	"context"
	"log"
	"time"

	"github.com/frans-willem/hostmac/ieee802154"
	"github.com/frans-willem/hostmac/radiobridge"
	"github.com/frans-willem/hostmac/uniquekey"
)

// pollInterval is how often Service.Run advances DeviceQueue timers
// (ack timeout, transaction expiry) in the absence of other activity.
const pollInterval = 50 * time.Millisecond

// DataIndication reports an inbound data frame to the service's owner.
type DataIndication struct {
	Source  *ieee802154.FullAddress
	Payload []byte
}

// Service is the single-goroutine MAC coordinator loop of SPEC_FULL.md
// §4.7: it joins the PIB, the MacQueue/DeviceQueue/CombinedPendingTable
// state machines and a radiobridge.Client into one cooperative driver.
// Every exported method is safe to call from any goroutine; the actual
// state mutation happens inside Run's single loop goroutine.
type Service struct {
	pib    *PIB
	queue  *MacQueue
	client *radiobridge.Client
	logger *log.Logger

	indications     chan<- MLMEIndication
	dataIndications chan<- DataIndication

	mlmeReset     chan MLMEResetRequest
	mlmeStart     chan MLMEStartRequest
	mlmeBeacon    chan MLMEBeaconRequest
	mlmeGet       chan MLMEGetRequest
	mlmeSet       chan MLMESetRequest
	mlmeAssociate chan MLMEAssociateRequest
	mlmePoll      chan MLMEPollRequest
	mcpsData      chan MCPSDataRequest
	mcpsPurge     chan MCPSPurgeRequest

	pendingMsdu map[uniquekey.Key]chan<- MCPSDataConfirm

	// pendingRadioParams tracks RadioParam values not yet confirmed applied
	// to the coprocessor, so Run retries them each poll tick until
	// SetValue succeeds (SPEC_FULL.md §9's radio-parameter reconciliation).
	pendingRadioParams map[radiobridge.RadioParam][]byte
}

// NewService constructs a Service bound to client, with PIB seeded from
// extendedAddress/currentChannel/maxTxPower. Call Run in its own goroutine
// to start the loop.
func NewService(client *radiobridge.Client, extendedAddress ieee802154.ExtendedAddress, currentChannel uint16, maxTxPower uint16, indications chan<- MLMEIndication, dataIndications chan<- DataIndication, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		pib:                NewPIB(extendedAddress, currentChannel, maxTxPower),
		queue:              NewMacQueue(),
		client:             client,
		logger:             logger,
		indications:        indications,
		dataIndications:    dataIndications,
		mlmeReset:          make(chan MLMEResetRequest),
		mlmeStart:          make(chan MLMEStartRequest),
		mlmeBeacon:         make(chan MLMEBeaconRequest),
		mlmeGet:            make(chan MLMEGetRequest),
		mlmeSet:            make(chan MLMESetRequest),
		mlmeAssociate:      make(chan MLMEAssociateRequest),
		mlmePoll:           make(chan MLMEPollRequest),
		mcpsData:           make(chan MCPSDataRequest),
		mcpsPurge:          make(chan MCPSPurgeRequest),
		pendingMsdu:        make(map[uniquekey.Key]chan<- MCPSDataConfirm),
		pendingRadioParams: make(map[radiobridge.RadioParam][]byte),
	}
}

// Reset requests MLME-RESET.
func (s *Service) Reset(setDefaultPIB bool) Status {
	result := make(chan MLMEResetConfirm, 1)
	s.mlmeReset <- MLMEResetRequest{SetDefaultPIB: setDefaultPIB, Result: result}
	return (<-result).Status
}

// Get requests MLME-GET.
func (s *Service) Get(attr PIBProperty) (PIBValue, Status) {
	result := make(chan MLMEGetConfirm, 1)
	s.mlmeGet <- MLMEGetRequest{Attribute: attr, Result: result}
	c := <-result
	return c.Value, c.Status
}

// Set requests MLME-SET.
func (s *Service) Set(attr PIBProperty, val PIBValue) Status {
	result := make(chan MLMESetConfirm, 1)
	s.mlmeSet <- MLMESetRequest{Attribute: attr, Value: val, Result: result}
	return (<-result).Status
}

// Poll requests MLME-POLL: send a DataRequest command to coord and wait for
// the outcome.
func (s *Service) Poll(coord ieee802154.FullAddress) Status {
	result := make(chan MLMEPollConfirm, 1)
	s.mlmePoll <- MLMEPollRequest{CoordAddress: coord, Result: result}
	return (<-result).Status
}

// SendData requests MCPS-DATA: queue msdu for delivery to destination (nil
// for broadcast).
func (s *Service) SendData(destination *ieee802154.FullAddress, srcMode ieee802154.AddressingMode, msdu []byte, ackTx, indirectTx bool) MCPSDataConfirm {
	result := make(chan MCPSDataConfirm, 1)
	s.mcpsData <- MCPSDataRequest{
		SourceAddressingMode: srcMode,
		Destination:          destination,
		Msdu:                 msdu,
		MsduHandle:           uniquekey.New(),
		AckTx:                ackTx,
		IndirectTx:           indirectTx,
		Result:               result,
	}
	return <-result
}

// Associate requests MLME-ASSOCIATE against coord.
func (s *Service) Associate(coord ieee802154.FullAddress, channel, channelPage uint8, capability ieee802154.CapabilityInformation) MLMEAssociateConfirm {
	result := make(chan MLMEAssociateConfirm, 1)
	s.mlmeAssociate <- MLMEAssociateRequest{
		ChannelNumber: channel,
		ChannelPage:   channelPage,
		CoordAddress:  coord,
		Capability:    capability,
		Result:        result,
	}
	return <-result
}

// Purge requests MCPS-PURGE for a previously queued handle.
func (s *Service) Purge(handle uniquekey.Key) Status {
	result := make(chan MCPSPurgeConfirm, 1)
	s.mcpsPurge <- MCPSPurgeRequest{MsduHandle: handle, Result: result}
	return (<-result).Status
}

// Run drives the cooperative loop until ctx is cancelled. It is meant to be
// the only goroutine that touches the Service's PIB/MacQueue state.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.mlmeReset:
			s.handleReset(req)
		case req := <-s.mlmeStart:
			s.handleStart(req)
		case req := <-s.mlmeBeacon:
			s.handleBeacon(req)
		case req := <-s.mlmeGet:
			s.handleGet(req)
		case req := <-s.mlmeSet:
			s.handleSet(req)
		case req := <-s.mlmeAssociate:
			s.handleAssociate(req)
		case req := <-s.mlmePoll:
			s.handlePoll(req)
		case req := <-s.mcpsData:
			s.handleData(req)
		case req := <-s.mcpsPurge:
			s.handlePurge(req)
		case pkt := <-s.client.Packets():
			s.handleIncomingPacket(pkt)
		case <-ticker.C:
			s.handlePollTick()
		}
		s.drainActions()
	}
}

func (s *Service) handleReset(req MLMEResetRequest) {
	if req.SetDefaultPIB {
		s.pib.Reset()
	}
	s.queue = NewMacQueue()
	s.pendingMsdu = make(map[uniquekey.Key]chan<- MCPSDataConfirm)
	req.Result <- MLMEResetConfirm{Status: Success}
}

func (s *Service) handleStart(req MLMEStartRequest) {
	if err := s.pib.Set(MacPanId, panIDValue(req.PANID)); err != nil {
		req.Result <- MLMEStartConfirm{Status: err.(*StatusError).Status}
		return
	}
	s.queuePendingRadioParam(radiobridge.ParamPanID, req.PANID)
	s.queuePendingRadioParam(radiobridge.ParamChannel, req.ChannelNumber)
	req.Result <- MLMEStartConfirm{Status: Success}
}

func (s *Service) handleBeacon(req MLMEBeaconRequest) {
	beacon := ieee802154.Beacon{
		AssociationPermit: s.pib.macAssociationPermit,
		Payload:           append([]byte(nil), s.pib.macBeaconPayload...),
	}
	frame := &ieee802154.Frame{
		Destination: req.DstAddr,
		Source:      s.ownAddress(),
		Type:        ieee802154.BeaconFrameType{Beacon: beacon},
	}
	seq := s.pib.NextBeaconSequenceNr()
	frame.SequenceNumber = &seq
	encoded, err := frame.Encode()
	if err != nil {
		req.Result <- MLMEBeaconConfirm{Status: InvalidParameter}
		return
	}
	if err := s.client.Send(encoded); err != nil {
		req.Result <- MLMEBeaconConfirm{Status: ChannelAccessFailure}
		return
	}
	req.Result <- MLMEBeaconConfirm{Status: Success}
}

func (s *Service) handleGet(req MLMEGetRequest) {
	val, err := s.pib.Get(req.Attribute)
	if err != nil {
		req.Result <- MLMEGetConfirm{Status: err.(*StatusError).Status, Attribute: req.Attribute}
		return
	}
	req.Result <- MLMEGetConfirm{Status: Success, Attribute: req.Attribute, Value: val}
}

func (s *Service) handleSet(req MLMESetRequest) {
	if err := s.pib.Set(req.Attribute, req.Value); err != nil {
		req.Result <- MLMESetConfirm{Status: err.(*StatusError).Status, Attribute: req.Attribute}
		return
	}
	switch req.Attribute {
	case MacPanId:
		s.queuePendingRadioParam(radiobridge.ParamPanID, s.pib.macPanId)
	case MacShortAddress:
		s.queuePendingRadioParam(radiobridge.ParamShortAddress, s.pib.macShortAddress)
	case PhyCurrentChannel:
		s.queuePendingRadioParam(radiobridge.ParamChannel, uint8(s.pib.phyCurrentChannel))
	case PhyTxPower:
		s.queuePendingRadioParam(radiobridge.ParamTxPower, int8(s.pib.phyTxPower))
	}
	req.Result <- MLMESetConfirm{Status: Success, Attribute: req.Attribute}
}

func (s *Service) handleAssociate(req MLMEAssociateRequest) {
	entry := &DeviceQueueEntry{
		Key:                uniquekey.New(),
		Destination:        &req.CoordAddress,
		AcknowledgeRequest: true,
		Content: ieee802154.CommandFrameType{
			Command: ieee802154.AssociationRequestCommand{Capability: req.Capability},
		},
		RetriesLeft: s.pib.MaxFrameRetries(),
	}
	entry.SequenceNumber = s.pib.NextDataSequenceNr()
	if err := s.queue.Insert(entry); err != nil {
		req.Result <- MLMEAssociateConfirm{Status: err.(*StatusError).Status}
		return
	}
	s.pendingMsdu[entry.Key] = s.associateResultAdapter(req.Result)
}

// associateResultAdapter lets the generic MCPS-style terminal-result
// delivery path (deliverTerminal) also satisfy an MLME-ASSOCIATE.confirm,
// which has no ack payload of interest.
func (s *Service) associateResultAdapter(result chan<- MLMEAssociateConfirm) chan<- MCPSDataConfirm {
	bridge := make(chan MCPSDataConfirm, 1)
	go func() {
		c := <-bridge
		status := Success
		if c.Err != nil {
			status = NoAck
		}
		result <- MLMEAssociateConfirm{Status: status}
	}()
	return bridge
}

func (s *Service) handlePoll(req MLMEPollRequest) {
	entry := &DeviceQueueEntry{
		Key:                uniquekey.New(),
		Destination:        &req.CoordAddress,
		AcknowledgeRequest: true,
		Content:            ieee802154.CommandFrameType{Command: ieee802154.DataRequestCommand{}},
		RetriesLeft:        s.pib.MaxFrameRetries(),
	}
	entry.SequenceNumber = s.pib.NextDataSequenceNr()
	if err := s.queue.Insert(entry); err != nil {
		req.Result <- MLMEPollConfirm{Status: err.(*StatusError).Status}
		return
	}
	bridge := make(chan MCPSDataConfirm, 1)
	go func() {
		c := <-bridge
		status := Success
		if c.Err != nil {
			status = NoAck
		}
		req.Result <- MLMEPollConfirm{Status: status}
	}()
	s.pendingMsdu[entry.Key] = bridge
}

func (s *Service) handleData(req MCPSDataRequest) {
	entry := &DeviceQueueEntry{
		Key:                  req.MsduHandle,
		Destination:          req.Destination,
		SourceAddressingMode: req.SourceAddressingMode,
		AcknowledgeRequest:   req.AckTx,
		Indirect:             req.IndirectTx,
		Content:              ieee802154.DataFrameType{Payload: req.Msdu},
		RetriesLeft:          s.pib.MaxFrameRetries(),
	}
	entry.SequenceNumber = s.pib.NextDataSequenceNr()
	ttl := s.pib.TransactionPersistenceTime()
	if ttl > 0 {
		entry.TransactionDeadline = time.Now().Add(ttl)
	}
	if err := s.queue.Insert(entry); err != nil {
		req.Result <- MCPSDataConfirm{MsduHandle: req.MsduHandle, Err: err}
		return
	}
	s.pendingMsdu[entry.Key] = req.Result
}

func (s *Service) handlePurge(req MCPSPurgeRequest) {
	result := s.queue.Purge(req.MsduHandle)
	if result == nil {
		req.Result <- MCPSPurgeConfirm{MsduHandle: req.MsduHandle, Status: InvalidHandle}
		return
	}
	delete(s.pendingMsdu, result.Key)
	req.Result <- MCPSPurgeConfirm{MsduHandle: req.MsduHandle, Status: Success}
}

func (s *Service) handlePollTick() {
	for _, result := range s.queue.Poll(time.Now()) {
		result := result
		s.deliverTerminal(&result)
	}
	s.reconcileRadioParams()
}

func (s *Service) ownAddress() *ieee802154.FullAddress {
	return &ieee802154.FullAddress{
		PANID:   s.pib.PanId(),
		Address: ieee802154.ShortAddr(s.pib.ShortAddress()),
	}
}

func (s *Service) handleIncomingPacket(pkt radiobridge.IncomingPacket) {
	frame, err := ieee802154.DecodeFrame(pkt.Packet)
	if err != nil {
		s.logger.Printf("mac: dropping undecodable frame: %v", err)
		return
	}
	switch body := frame.Type.(type) {
	case ieee802154.AckFrameType:
		if frame.SequenceNumber == nil {
			return
		}
		if result := s.queue.AckAny(*frame.SequenceNumber, body.Payload); result != nil {
			s.deliverTerminal(result)
		}
	case ieee802154.CommandFrameType:
		s.handleIncomingCommand(frame, body)
	case ieee802154.DataFrameType:
		if s.dataIndications != nil {
			s.dataIndications <- DataIndication{Source: frame.Source, Payload: body.Payload}
		}
	case ieee802154.BeaconFrameType:
		if s.indications != nil && frame.Source != nil {
			s.indications <- MLMEBeaconNotifyIndication{
				PANDescriptor: PANDescriptor{
					CoordAddress: *frame.Source,
					Timestamp:    time.Now(),
				},
				Beacon: body.Beacon,
			}
		}
	}
}

func (s *Service) handleIncomingCommand(frame *ieee802154.Frame, body ieee802154.CommandFrameType) {
	switch cmd := body.Command.(type) {
	case ieee802154.DataRequestCommand:
		s.queue.DataRequest(frame.Source)
	case ieee802154.AssociationRequestCommand:
		if s.indications != nil && frame.Source != nil {
			s.indications <- MLMEAssociateIndication{
				DeviceAddress: frame.Source.Address.Extended,
				Capability:    cmd.Capability,
			}
		}
	case ieee802154.BeaconRequestCommand:
		// Handled by an explicit MLMEBeaconRequest issued by the coordinator
		// policy layer, not automatically here.
	}
}

func (s *Service) deliverTerminal(result *TerminalResult) {
	ch, ok := s.pendingMsdu[result.Key]
	if !ok {
		return
	}
	delete(s.pendingMsdu, result.Key)
	ch <- MCPSDataConfirm{MsduHandle: result.Key, AckPayload: result.AckPayload, Err: result.Err}
}

func (s *Service) drainActions() {
	for {
		action, ok := s.queue.TryNextAction()
		if !ok {
			return
		}
		switch a := action.(type) {
		case SendAction:
			s.performSend(a)
		case InitAction:
			err := s.client.InitPendingTable()
			s.queue.ReportPendingTableResult(action, a.Key, err == nil)
		case UpdateShortAction:
			err := s.performUpdateShort(a)
			s.queue.ReportPendingTableResult(action, a.Key, err == nil)
		case UpdateExtendedAction:
			err := s.client.SetPendingExtended(a.Index, a.Value)
			s.queue.ReportPendingTableResult(action, a.Key, err == nil)
		}
	}
}

func (s *Service) performUpdateShort(a UpdateShortAction) error {
	if a.Value == nil {
		return s.client.SetPendingShort(a.Index, 0, nil)
	}
	short := a.Value.Short
	return s.client.SetPendingShort(a.Index, a.Value.PANID, &short)
}

func (s *Service) performSend(a SendAction) {
	frame := &ieee802154.Frame{
		AcknowledgeRequest: a.Entry.AcknowledgeRequest,
		Destination:        a.Entry.Destination,
		Source:             s.frameSource(a.Entry),
		Type:               a.Entry.Content,
	}
	seq := a.Entry.SequenceNumber
	frame.SequenceNumber = &seq
	encoded, err := frame.Encode()
	ok := err == nil
	if ok {
		ok = s.client.Send(encoded) == nil
	}
	if result := s.queue.SendResult(a.Entry.Destination, a.Key, ok); result != nil {
		s.deliverTerminal(result)
	}
}

func (s *Service) frameSource(entry *DeviceQueueEntry) *ieee802154.FullAddress {
	if entry.SourceAddressingMode == ieee802154.AddressingModeNone {
		return nil
	}
	addr := s.ownAddress()
	if entry.SourceAddressingMode == ieee802154.AddressingModeExtended {
		addr.Address = ieee802154.ExtendedAddr(s.pib.ExtendedAddress())
	}
	return addr
}

func (s *Service) queuePendingRadioParam(param radiobridge.RadioParam, value interface{}) {
	var data []byte
	switch v := value.(type) {
	case uint8:
		data = []byte{v}
	case int8:
		data = []byte{byte(v)}
	case ieee802154.PANID:
		data = []byte{byte(v), byte(v >> 8)}
	case ieee802154.ShortAddress:
		data = []byte{byte(v), byte(v >> 8)}
	}
	s.pendingRadioParams[param] = data
}

// reconcileRadioParams retries every not-yet-confirmed SetValue call. A
// parameter is dropped from the retry set once SetValue succeeds; it stays
// queued (and is retried again next tick) on failure, since the
// coprocessor link may be transiently busy.
func (s *Service) reconcileRadioParams() {
	for param, data := range s.pendingRadioParams {
		if err := s.client.SetValue(param, data); err == nil {
			delete(s.pendingRadioParams, param)
		}
	}
}
