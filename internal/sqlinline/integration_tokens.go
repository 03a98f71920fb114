package sqlinline

const QSelectIntegrationToken = `--sql 3c1f9a7e-52b4-4d0e-9e61-0b7d2f84c5a9
select token, updated_at
from integration_tokens
where provider = $1;
`

// properties are merged so older keys such as notes survive a rotation.
const QUpsertIntegrationToken = `--sql b95e2d40-6a13-4f8c-a7d2-91c4e06f3b18
insert into integration_tokens (provider, token, properties)
values ($1, $2, $3::jsonb)
on conflict (provider) do update set
    token = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now();
`
